package procexec

import (
	"testing"
)

func TestForegroundSpawnAndWaitAllSuccess(t *testing.T) {
	h1, err := ForegroundSpawn([]string{"true"})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ForegroundSpawn([]string{"true"})
	if err != nil {
		t.Fatal(err)
	}

	if err := WaitAll([]*Handle{h1, h2}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestWaitAllReportsFailureAndKillsSiblings(t *testing.T) {
	failing, err := ForegroundSpawn([]string{"false"})
	if err != nil {
		t.Fatal(err)
	}
	sleeper, err := ForegroundSpawn([]string{"sleep", "5"})
	if err != nil {
		t.Fatal(err)
	}

	err = WaitAll([]*Handle{failing, sleeper})
	if err == nil {
		t.Fatal("expected WaitAll to report the failing command")
	}
	if sleeper.cmd.ProcessState == nil || sleeper.cmd.ProcessState.ExitCode() != -1 {
		t.Fatalf("expected the still-running sibling to be killed, got state %v", sleeper.cmd.ProcessState)
	}
}

func TestForegroundExecuteReturnsExitCode(t *testing.T) {
	code, err := ForegroundExecute([]string{"false"})
	if err != nil {
		t.Fatal(err)
	}
	if code == 0 {
		t.Fatal("expected a non-zero exit code from false")
	}
}

func TestBackgroundExecuteCapturesOutput(t *testing.T) {
	stdout, _, err := BackgroundExecute([]string{"echo", "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "hello\n" {
		t.Fatalf("stdout = %q, want %q", stdout, "hello\n")
	}
}

func TestBackgroundExecuteFailsOnNonZeroExit(t *testing.T) {
	if _, _, err := BackgroundExecute([]string{"false"}); err == nil {
		t.Fatal("expected an error for a non-zero exit")
	}
}
