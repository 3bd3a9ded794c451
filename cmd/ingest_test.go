package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openrecords/caseharvester/internal/court"
)

func TestReadIdentifiers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cases.txt")
	content := "24CV428648\n\n# batch two\n22CH010501\n  23FL001122  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	ids, err := readIdentifiers(path)
	require.NoError(t, err)
	require.Equal(t, []string{"24CV428648", "22CH010501", "23FL001122"}, ids)
}

func TestReadIdentifiersMissingFile(t *testing.T) {
	t.Parallel()

	_, err := readIdentifiers(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestPrintSummaryListsFailures(t *testing.T) {
	t.Parallel()

	summary := court.RunSummary{
		RunID:    "run-1",
		Total:    3,
		Started:  time.Unix(100, 0),
		Finished: time.Unix(103, 0),
	}
	summary.Succeeded = 2
	summary.Failed = 1
	summary.Results = []court.CaseResult{
		{Identifier: "24CV428648", Outcome: court.OutcomeSucceeded},
		{Identifier: "24CV000000", Outcome: court.OutcomeFailed, Reason: "not found", Attempts: 1},
	}

	var buf strings.Builder
	printSummary(&buf, summary)

	out := buf.String()
	require.Contains(t, out, "succeeded:   2")
	require.Contains(t, out, "FAILED 24CV000000: not found (attempts=1)")
}
