package database

import "testing"

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20260820_120000_initial_schema.up.sql",
			wantVersion: "20260820_120000",
			wantUp:      true,
			wantOK:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20260820_120000_initial_schema.down.sql",
			wantVersion: "20260820_120000",
			wantUp:      false,
			wantOK:      true,
		},
		{
			name:     "not sql",
			filename: "embed.go",
			wantOK:   false,
		},
		{
			name:     "missing direction suffix",
			filename: "20260820_120000_initial_schema.sql",
			wantOK:   false,
		},
		{
			name:     "missing version",
			filename: "schema.up.sql",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	if got := extractMigrationName("20260820_120000_initial_schema.up.sql"); got != "initial_schema" {
		t.Errorf("extractMigrationName() = %q, want %q", got, "initial_schema")
	}
}
