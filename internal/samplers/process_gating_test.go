package samplers

import "testing"

func TestIsTempPathMatchesIndicators(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/tmp/payload", true},
		{"/var/tmp/dropper.bin", true},
		{"/dev/shm/x", true},
		{"/usr/bin/bash", false},
		{"/home/alice/bin/tool", false},
	}
	for _, tc := range cases {
		if got := isTempPath(tc.path); got != tc.want {
			t.Errorf("isTempPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestSuspiciousProcessNamesMembership(t *testing.T) {
	for _, name := range []string{"nc", "mimikatz", "psexec", "cobaltstrike"} {
		if _, ok := suspiciousProcessNames[name]; !ok {
			t.Errorf("expected %q to be in the suspicious name set", name)
		}
	}
	if _, ok := suspiciousProcessNames["bash"]; ok {
		t.Error("expected a common shell not to be flagged suspicious")
	}
}
