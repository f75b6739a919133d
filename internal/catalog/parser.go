package catalog

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"modelscout/internal/domain"
)

// columnIndex maps recognized header names to cell positions. Only id and
// provider are mandatory; the rest degrade to "unknown" when absent.
type columnIndex struct {
	id, provider, name, regions, input, output, streaming int
}

// ParseDocument locates the first table whose header row names both a
// model-id and a provider column (case-insensitive, order-independent) and
// converts its data rows into descriptors. Rows with fewer than six cells
// or a blank id/provider are skipped.
func ParseDocument(doc []byte) ([]domain.ResourceDescriptor, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, &domain.ParseError{Reason: "invalid html: " + err.Error()}
	}
	for _, rows := range collectTables(root) {
		if len(rows) < 2 {
			continue
		}
		cols, ok := indexColumns(rows[0])
		if !ok {
			continue
		}
		var descs []domain.ResourceDescriptor
		for _, row := range rows[1:] {
			d, ok := parseRow(row, cols)
			if !ok {
				continue
			}
			descs = append(descs, d)
		}
		return descs, nil
	}
	return nil, &domain.ParseError{Reason: "no table with model id and provider columns"}
}

func indexColumns(header []string) (columnIndex, bool) {
	cols := columnIndex{id: -1, provider: -1, name: -1, regions: -1, input: -1, output: -1, streaming: -1}
	for i, cell := range header {
		lowered := strings.ToLower(cell)
		switch {
		case strings.Contains(lowered, "model id"):
			cols.id = i
		case strings.Contains(lowered, "model name"):
			cols.name = i
		case strings.Contains(lowered, "provider"):
			cols.provider = i
		case strings.Contains(lowered, "region"):
			cols.regions = i
		case strings.Contains(lowered, "input"):
			cols.input = i
		case strings.Contains(lowered, "output"):
			cols.output = i
		case strings.Contains(lowered, "streaming"):
			cols.streaming = i
		}
	}
	return cols, cols.id >= 0 && cols.provider >= 0
}

func parseRow(row []string, cols columnIndex) (domain.ResourceDescriptor, bool) {
	if len(row) < 6 {
		return domain.ResourceDescriptor{}, false
	}
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	id := cell(cols.id)
	provider := cell(cols.provider)
	if id == "" || provider == "" {
		return domain.ResourceDescriptor{}, false
	}
	return domain.ResourceDescriptor{
		ID:                id,
		DisplayName:       cell(cols.name),
		ProviderName:      provider,
		Regions:           strings.Fields(cell(cols.regions)),
		InputModalities:   splitList(cell(cols.input)),
		OutputModalities:  splitList(cell(cols.output)),
		SupportsStreaming: strings.Contains(strings.ToLower(cell(cols.streaming)), "yes"),
		LifecycleState:    domain.LifecycleActive,
	}, true
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// collectTables returns the cell text of every table in document order,
// one [][]string per table, header row first.
func collectTables(root *html.Node) [][][]string {
	var tables [][][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			tables = append(tables, tableRows(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return tables
}

func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, nodeText(c))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
