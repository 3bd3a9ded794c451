package court

import "testing"

func TestNormalizeCaseNumber(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  24cv428648 ": "24CV428648",
		"22CH010501":    "22CH010501",
		"\t21cv-99\n":   "21CV-99",
	}
	for in, want := range cases {
		if got := NormalizeCaseNumber(in); got != want {
			t.Fatalf("NormalizeCaseNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeDocumentName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Complaint, Summons":        "Complaint-Summons.pdf",
		`Order (Proposed) "Final".`: "Order-Proposed-Final.pdf",
		"judgment.PDF":              "judgment.PDF",
		"Notice of Hearing":         "Notice-of-Hearing.pdf",
	}
	for in, want := range cases {
		if got := SanitizeDocumentName(in); got != want {
			t.Fatalf("SanitizeDocumentName(%q) = %q, want %q", in, got, want)
		}
	}
}
