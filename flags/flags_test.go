package flags

import (
	"slices"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional are
// not set as required.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		if !ok {
			t.Errorf("flag %v does not implement RequiredFlag interface", flag.Names()[0])
			continue
		}
		if reqFlag.IsRequired() {
			t.Errorf("optional flag %v is set as required", flag.Names()[0])
		}
	}
}

// TestUniqueFlags asserts that no flag names are duplicated.
func TestUniqueFlags(t *testing.T) {
	seen := map[string]struct{}{}
	for _, flag := range Flags {
		for _, name := range flag.Names() {
			if _, ok := seen[name]; ok {
				t.Errorf("duplicate flag name %s", name)
			}
			seen[name] = struct{}{}
		}
	}
}

// TestEnvVarFormat asserts that all flag env vars carry the service prefix
// and follow from the flag name.
func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		envFlag, ok := flag.(interface{ GetEnvVars() []string })
		if !ok {
			t.Errorf("flag %v does not expose env vars", flag.Names()[0])
			continue
		}
		envVars := envFlag.GetEnvVars()
		if len(envVars) != 1 {
			t.Errorf("flag %v should have exactly one env var, got %v", flag.Names()[0], envVars)
			continue
		}
		if !strings.HasPrefix(envVars[0], EnvVarPrefix+"_") {
			t.Errorf("env var %s does not start with %s_", envVars[0], EnvVarPrefix)
		}
	}
}

func TestRequiredFlagsAreRequired(t *testing.T) {
	for _, flag := range requiredFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		if !ok || !reqFlag.IsRequired() {
			t.Errorf("flag %v in requiredFlags is not marked required", flag.Names()[0])
		}
	}
}

func TestFlagsContainsAll(t *testing.T) {
	if len(Flags) != len(requiredFlags)+len(optionalFlags) {
		t.Errorf("Flags has %d entries, want %d", len(Flags), len(requiredFlags)+len(optionalFlags))
	}
	for _, flag := range requiredFlags {
		if !slices.Contains(Flags, flag) {
			t.Errorf("required flag %v missing from Flags", flag.Names()[0])
		}
	}
}
