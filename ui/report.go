package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"pepdensity/domain/core"
	"pepdensity/domain/stats"
)

// renderIndex builds the landing page: recent sweeps with their headline
// counts.
func renderIndex(manifests []stats.SweepManifest) []byte {
	var b strings.Builder
	b.WriteString("# Density sweeps\n\n")
	if len(manifests) == 0 {
		b.WriteString("No sweeps recorded yet.\n")
		return toHTML(b.String())
	}
	b.WriteString("| Sweep | Started | Features | Tested | Skipped | Failed fits |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, m := range manifests {
		fmt.Fprintf(&b, "| [%s](/sweeps/%s/report) | %s | %d | %d | %d | %d |\n",
			m.Sweep, m.Sweep, m.StartedAt.Time().Format("2006-01-02 15:04:05"),
			m.FeatureCount, m.Tested, m.Skipped, m.FailedFits)
	}
	return toHTML(b.String())
}

// renderReport builds the per-sweep summary page.
func renderReport(m stats.SweepManifest, comparisons []core.Artifact) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Sweep %s\n\n", m.Sweep)
	fmt.Fprintf(&b, "Input fingerprint `%s`, started %s.\n\n",
		m.Fingerprint, m.StartedAt.Time().Format("2006-01-02 15:04:05"))

	b.WriteString("## Configuration\n\n")
	fmt.Fprintf(&b, "- Bins: %d\n", m.BinCount)
	fmt.Fprintf(&b, "- Main degree: %d, interaction degrees: %v\n", m.MainDegree, m.InteractionDegrees)
	fmt.Fprintf(&b, "- FDR threshold: %g\n\n", m.FDRThreshold)

	b.WriteString("## Outcome\n\n")
	fmt.Fprintf(&b, "- Features: %d (tested %d, skipped %d)\n", m.FeatureCount, m.Tested, m.Skipped)
	fmt.Fprintf(&b, "- Failed fits: %d\n\n", m.FailedFits)

	if len(m.SkipReasons) > 0 {
		b.WriteString("## Skip reasons\n\n")
		b.WriteString("| Reason | Features |\n|---|---|\n")
		reasons := make([]string, 0, len(m.SkipReasons))
		for r := range m.SkipReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(&b, "| %s | %d |\n", r, m.SkipReasons[r])
		}
		b.WriteString("\n")
	}

	if len(m.SignificantByFamily) > 0 {
		b.WriteString("## Significant calls per family\n\n")
		b.WriteString("| Family | Significant |\n|---|---|\n")
		keys := make([]string, 0, len(m.SignificantByFamily))
		for k := range m.SignificantByFamily {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "| %s | %d |\n", k, m.SignificantByFamily[k])
		}
		b.WriteString("\n")
	}

	if len(comparisons) > 0 {
		b.WriteString("## Agreement with the reference workflow\n\n")
		b.WriteString("| Family | Shared | Both | Density only | Reference only | Jaccard |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, a := range comparisons {
			cmp, ok := a.Payload.(stats.FamilyComparison)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "| %s/%s | %d | %d | %d | %d | %.3f |\n",
				cmp.Model, cmp.Kind, cmp.SharedTested,
				len(cmp.Both), len(cmp.DensityExtra), len(cmp.ReferenceExtra), cmp.Jaccard)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Raw results: [results](/sweeps/%s/results), [skipped](/sweeps/%s/skipped), [failures](/sweeps/%s/failures)\n",
		m.Sweep, m.Sweep, m.Sweep)
	return toHTML(b.String())
}

func toHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(md))
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.CompletePage,
		Title: "pepdensity",
	})
	return markdown.Render(doc, renderer)
}
