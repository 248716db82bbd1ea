// Package sources holds the four extractors: CSV, XML, JSON and HTML scrape.
package sources

import (
	"aggregator/internal/etl"
	"aggregator/internal/logger"
)

// Options bundles the per-source settings.
type Options struct {
	CSV  CSVOptions
	XML  XMLOptions
	JSON JSONOptions
	HTML HTMLOptions
}

// NewRegistry builds a registry holding one extractor per source kind.
func NewRegistry(opts Options, log logger.Logger) (*etl.Registry, error) {
	return etl.NewRegistry(
		NewCSVFile(opts.CSV, log),
		NewXMLFile(opts.XML, log),
		NewJSONFile(opts.JSON, log),
		NewHTMLScrape(opts.HTML, log),
	)
}
