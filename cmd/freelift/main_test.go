package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})
	if code := execute(cmd); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.HasPrefix(buf.String(), "freelift dev") {
		t.Errorf("output = %q, want prefix %q", buf.String(), "freelift dev")
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"version", "serve", "migrate", "mcp", "import-alpha", "audit-prs", "upload-alpha"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestImportAlphaRequiresFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"import-alpha"})
	if code := execute(cmd); code == 0 {
		t.Error("import-alpha without a file should fail")
	}
}

const sampleExport = `"Push";"2026-02-19 4:54 h";"1:02 hr"
"1. Bench Press · Barbell · 8 reps"
#;KG;REPS;RIR
1;100;8;2
2;102,5;6;1
`

func TestImportAlphaThenAudit(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "lift.db")
	csvPath := filepath.Join(dir, "export.csv")

	cfgYAML := "database:\n  driver: sqlite\n  path: " + dbPath + "\nauth:\n  api_key: test\nlogging:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(csvPath, []byte(sampleExport), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"import-alpha", "-c", cfgPath, csvPath})
	if code := execute(cmd); code != 0 {
		t.Fatalf("import exit code = %d", code)
	}
	var result struct {
		WorkoutsInserted int `json:"workouts_inserted"`
		RecordsCreated   int `json:"records_created"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v (%s)", err, out.String())
	}
	if result.WorkoutsInserted != 1 || result.RecordsCreated != 2 {
		t.Errorf("result = %+v, want 1 workout and 2 records", result)
	}

	cmd = newRootCmd()
	out.Reset()
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"audit-prs", "-c", cfgPath, "--strict"})
	if code := execute(cmd); code != 0 {
		t.Fatalf("audit exit code = %d, output:\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "Bench Press") || !strings.Contains(out.String(), "102.5 kg") {
		t.Errorf("audit output missing bench record:\n%s", out.String())
	}
}
