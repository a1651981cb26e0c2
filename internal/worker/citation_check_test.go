package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scholar-project-service/internal/models"
)

const sampleDoc = `\documentclass{article}
\begin{document}
Transformers dominate sequence modeling \cite{vaswani2017, devlin2019}.
Recent work by Smith et al. extends this to graphs.
Earlier approaches used recurrence \citep{hochreiter1997}.
See also \citet*{brown2020} for scaling laws.
\end{document}`

func TestParseCitations(t *testing.T) {
	cites := parseCitations(sampleDoc)
	require.Len(t, cites, 3)

	require.Equal(t, []string{"vaswani2017", "devlin2019"}, cites[0].keys)
	require.Equal(t, 3, cites[0].line)
	require.Equal(t, `\cite{vaswani2017, devlin2019}`, cites[0].text)

	require.Equal(t, []string{"hochreiter1997"}, cites[1].keys)
	require.Equal(t, 5, cites[1].line)

	require.Equal(t, []string{"brown2020"}, cites[2].keys)
	require.Equal(t, `\citet*{brown2020}`, cites[2].text)
}

func TestParseCitationsPositions(t *testing.T) {
	content := `intro \cite{a} outro`
	cites := parseCitations(content)
	require.Len(t, cites, 1)
	require.Equal(t, 6, cites[0].position)
	require.Equal(t, len(`\cite{a}`), cites[0].length)
	require.Equal(t, 1, cites[0].line)
}

func TestUncitedClaims(t *testing.T) {
	issues := uncitedClaims(sampleDoc)
	require.Len(t, issues, 1)

	issue := issues[0]
	require.Equal(t, models.IssueMissingCitation, issue.IssueType)
	require.Equal(t, models.SeverityMedium, issue.Severity)
	require.Equal(t, 4, issue.LineStart)
	require.Contains(t, issue.CitationText, "Smith et al.")
}

func TestUncitedClaimsSkipsCitedLines(t *testing.T) {
	content := `Jones et al. showed this \cite{jones2021}.`
	require.Empty(t, uncitedClaims(content))
}

func TestLibraryKeys(t *testing.T) {
	papers := []models.Paper{
		{ID: "p1", CitationKey: "vaswani2017"},
		{ID: "p2", CitationKey: "devlin2019"},
		{ID: "p3"}, // no key assigned
	}

	keys := libraryKeys(papers, nil)
	require.Equal(t, map[string]bool{"vaswani2017": true, "devlin2019": true}, keys)

	filtered := libraryKeys(papers, map[string]bool{"p2": true})
	require.Equal(t, map[string]bool{"devlin2019": true}, filtered)
}

func TestSelectedIDs(t *testing.T) {
	require.Nil(t, selectedIDs(map[string]any{}))

	// JSON-decoded payloads carry []any.
	ids := selectedIDs(map[string]any{"selected_paper_ids": []any{"p1", "p2"}})
	require.Equal(t, map[string]bool{"p1": true, "p2": true}, ids)
}
