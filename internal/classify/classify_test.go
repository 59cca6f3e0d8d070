package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    Protocol
	}{
		{name: "display verb", command: "DSPLIBL", want: Screen},
		{name: "qualified display verb", command: "QSYS/DSPHDWRSC TYPE(*CMN)", want: Screen},
		{name: "work with verb", command: "WRKACTJOB", want: Screen},
		{name: "qualified work with verb", command: "QSYS/WRKSYSSTS", want: Screen},
		{name: "lower case is normalised", command: "  dsplibl ", want: Screen},
		{name: "output star", command: "DSPJOBLOG JOB(*) OUTPUT(*)", want: Screen},
		{name: "output star on non display verb", command: "RTVCFGSRC CFGD(*ALL) OUTPUT(*)", want: Screen},
		{name: "create library", command: "CRTLIB LIB(TESTLIB)", want: Procedural},
		{name: "output to print file", command: "CALL PGM(X) PARM(OUTPUT(*PRINT))", want: Procedural},
		// textual rule wins even when the verb does not page output
		{name: "display prefix without paging", command: "DSPFD FILE(X) OUTPUT(*OUTFILE) OUTFILE(QTEMP/F)", want: Screen},
		{name: "other library qualifier", command: "MYLIB/DSPTHING", want: Procedural},
		{name: "empty", command: "", want: Procedural},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.command); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestProtocolString(t *testing.T) {
	if Screen.String() != "screen" || Procedural.String() != "procedural" {
		t.Errorf("unexpected protocol names: %s, %s", Screen, Procedural)
	}
}
