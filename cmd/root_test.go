package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCmdHasSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"annotate", "records", "label", "migrate", "version"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestAnnotateRejectsBadRequestID(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"annotate", "not-a-uuid"})

	err := root.Execute()
	if err == nil {
		t.Fatal("Execute() error = nil, want invalid id error")
	}
	if !strings.Contains(err.Error(), "invalid request id") {
		t.Errorf("error = %v, want invalid request id", err)
	}
}

func TestAnnotateRequiresArgument(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"annotate"})

	if err := root.Execute(); err == nil {
		t.Fatal("Execute() error = nil, want missing argument error")
	}
}

func TestLabelRejectsBadRecordID(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"label", "xyz"})

	err := root.Execute()
	if err == nil {
		t.Fatal("Execute() error = nil, want invalid id error")
	}
	if !strings.Contains(err.Error(), "invalid record id") {
		t.Errorf("error = %v, want invalid record id", err)
	}
}
