package autorevoke

import (
	"strings"
	"testing"
)

const jobLog = `10-18 12:00:00.100  1234  1250 I PermissionController: onStartJob
10-18 12:00:00.200  1234  1250 I PermissionController: checking 42 packages
10-18 12:00:01.000  1234  1250 I PermissionController: Done auto-revoke for user 0`

func TestContainsInOrder(t *testing.T) {
	if err := containsInOrder(jobLog, hibernationJobLog); err != nil {
		t.Fatalf("containsInOrder: %v", err)
	}
}

func TestContainsInOrderMissing(t *testing.T) {
	err := containsInOrder(strings.SplitN(jobLog, "\n", 2)[0], hibernationJobLog)
	if err == nil {
		t.Fatal("expected error when the job has not finished")
	}
	if !strings.Contains(err.Error(), "Done auto-revoke for user") {
		t.Errorf("error %q does not name the missing line", err)
	}
}

func TestContainsInOrderWrongOrder(t *testing.T) {
	reversed := "Done auto-revoke for user 0\nonStartJob\n"
	if err := containsInOrder(reversed, hibernationJobLog); err == nil {
		t.Fatal("expected error for out-of-order lines")
	}
}

func TestContainsInOrderIgnoresLinesBeforeMark(t *testing.T) {
	const mark = "mark-3f0c2a"
	previousRun := jobLog + "\n10-18 12:00:01.500  4321  4321 I hibercheck: " + mark + "\n"
	want := append([]string{mark}, hibernationJobLog...)
	if err := containsInOrder(previousRun, want); err == nil {
		t.Fatal("lines logged before the mark satisfied the wait")
	}

	thisRun := previousRun + jobLog
	if err := containsInOrder(thisRun, want); err != nil {
		t.Fatalf("containsInOrder: %v", err)
	}
}
