package sources

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"aggregator/internal/etl"
	"aggregator/internal/logger"
)

// ── XML File Source ─────────────────────────────────────────
// One record per direct child of the document root.
//
// Field rule, for each configured name f: attribute f if present, else the
// text of the first direct child element named f, else "". With no names
// configured, the fields are the texts of the node's child elements in
// document order, or the node's own text when it has none.

// DefaultXMLFields is the field list configuration falls back to. An
// extractor built with no fields runs in positional mode instead.
var DefaultXMLFields = []string{"id", "name", "value"}

// XMLOptions configures the XML extractor.
type XMLOptions struct {
	Fields []string
}

type xmlFileSource struct {
	opts XMLOptions
	log  logger.Logger
}

// xmlNode decodes any element generically.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

// NewXMLFile returns the XML extractor.
func NewXMLFile(opts XMLOptions, log logger.Logger) etl.Extractor {
	return &xmlFileSource{opts: opts, log: log.With(logger.String("source", string(etl.SourceXML)))}
}

func (s *xmlFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Kind:  etl.SourceXML,
		Label: "XML Document",
		Input: "file",
		ConfigFields: []etl.ConfigField{
			{Key: "sources.xml.path", Required: true, Help: "Path to the XML document"},
			{Key: "sources.xml.fields", Default: strings.Join(DefaultXMLFields, ","), Help: "Attribute or child element names, in column order"},
		},
	}
}

func (s *xmlFileSource) Extract(ctx context.Context, path string) ([]etl.SourceRecord, error) {
	log := s.log.With(logger.String("input", path))
	if path == "" {
		log.Warn("no xml input configured")
		return nil, fmt.Errorf("%w: xml path is empty", etl.ErrSourceUnavailable)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Error("open xml failed", logger.Error(err))
		return nil, fmt.Errorf("%w: open xml: %w", etl.ErrSourceUnavailable, err)
	}
	defer f.Close()

	records, skipped, err := s.decode(ctx, xml.NewDecoder(f), log)
	if err != nil {
		// A malformed document contributes nothing, even nodes decoded before the error.
		log.Error("parse xml failed", logger.Error(err))
		return nil, err
	}

	log.Info("xml extracted", logger.Int("records", len(records)), logger.Int("skipped", skipped))
	return records, nil
}

func (s *xmlFileSource) decode(ctx context.Context, dec *xml.Decoder, log logger.Logger) ([]etl.SourceRecord, int, error) {
	var records []etl.SourceRecord
	skipped := 0
	depth := 0
	rootClosed := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, skipped, fmt.Errorf("%w: %w", etl.ErrSourceUnavailable, err)
		}

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return records, skipped, nil
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("%w: parse xml: %w", etl.ErrParseMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				return nil, skipped, fmt.Errorf("%w: parse xml: element <%s> after document root",
					etl.ErrParseMalformed, t.Name.Local)
			}
			if depth == 0 {
				depth = 1
				log.Debug("xml document root", logger.String("root", t.Name.Local))
				continue
			}
			var node xmlNode
			if err := dec.DecodeElement(&node, &t); err != nil {
				var syntaxErr *xml.SyntaxError
				if errors.As(err, &syntaxErr) {
					return nil, skipped, fmt.Errorf("%w: parse xml: %w", etl.ErrParseMalformed, err)
				}
				skipped++
				log.Warn("skipping xml node", logger.String("node", t.Name.Local), logger.Error(err))
				continue
			}
			records = append(records, etl.NewSourceRecord(etl.SourceXML, s.fieldsOf(node)))
		case xml.EndElement:
			depth--
			if depth == 0 {
				rootClosed = true
			}
		}
	}
}

func (s *xmlFileSource) fieldsOf(n xmlNode) []string {
	if len(s.opts.Fields) == 0 {
		if len(n.Children) == 0 {
			return []string{collapseSpace(n.Text)}
		}
		out := make([]string, len(n.Children))
		for i, c := range n.Children {
			out[i] = innerText(c)
		}
		return out
	}

	out := make([]string, len(s.opts.Fields))
	for i, name := range s.opts.Fields {
		out[i] = lookupXMLField(n, name)
	}
	return out
}

func lookupXMLField(n xmlNode, name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return innerText(c)
		}
	}
	return ""
}

// innerText joins the node's own text with all descendant text.
func innerText(n xmlNode) string {
	var b strings.Builder
	var walk func(xmlNode)
	walk = func(x xmlNode) {
		b.WriteString(x.Text)
		b.WriteByte(' ')
		for _, c := range x.Children {
			walk(c)
		}
	}
	walk(n)
	return collapseSpace(b.String())
}
