package sources_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"aggregator/internal/etl"
	"aggregator/internal/etl/sources"
	"aggregator/internal/logger"
)

const catalogXML = `<?xml version="1.0" encoding="UTF-8"?>
<catalog>
  <item id="1" name="attr-name">
    <name>child-name</name>
    <value>  10  </value>
  </item>
  <item id="2">
    <name>Second <b>bold</b></name>
  </item>
  <item>plain text</item>
</catalog>`

func TestXMLFile_FieldRule(t *testing.T) {
	ex := sources.NewXMLFile(sources.XMLOptions{Fields: sources.DefaultXMLFields}, logger.NewNop())

	recs, err := ex.Extract(context.Background(), writeFile(t, "in.xml", catalogXML))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"1", "attr-name", "10"},
		{"2", "Second bold", ""},
		{"", "", ""},
	}, fieldsOf(recs))
	for _, r := range recs {
		assert.Equal(t, etl.SourceXML, r.Source)
	}
}

func TestXMLFile_PositionalMode(t *testing.T) {
	ex := sources.NewXMLFile(sources.XMLOptions{}, logger.NewNop())

	recs, err := ex.Extract(context.Background(), writeFile(t, "in.xml", catalogXML))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"child-name", "10"},
		{"Second bold"},
		{"plain text"},
	}, fieldsOf(recs))
}

func TestXMLFile_EmptyRoot(t *testing.T) {
	ex := sources.NewXMLFile(sources.XMLOptions{}, logger.NewNop())

	recs, err := ex.Extract(context.Background(), writeFile(t, "in.xml", `<root/>`))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestXMLFile_MalformedYieldsNothing(t *testing.T) {
	log, logs := observed()
	ex := sources.NewXMLFile(sources.XMLOptions{Fields: []string{"id"}}, log)

	doc := `<items><item id="1"/><item id="2"></items>`
	recs, err := ex.Extract(context.Background(), writeFile(t, "bad.xml", doc))
	assert.Empty(t, recs, "records decoded before the error are discarded")
	require.ErrorIs(t, err, etl.ErrParseMalformed)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestXMLFile_SecondTopLevelElementIsMalformed(t *testing.T) {
	log, logs := observed()
	ex := sources.NewXMLFile(sources.XMLOptions{Fields: []string{"id"}}, log)

	path := writeFile(t, "two-roots.xml", `<a><x id="1"/></a><b><y id="2"/></b>`)
	recs, err := ex.Extract(context.Background(), path)
	assert.Empty(t, recs)
	require.ErrorIs(t, err, etl.ErrParseMalformed)
	assert.Contains(t, err.Error(), "<b>")

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, path, errs[0].ContextMap()["input"])
}

func TestXMLFile_DecodeLogsCarryInput(t *testing.T) {
	log, logs := observed()
	ex := sources.NewXMLFile(sources.XMLOptions{}, log)

	path := writeFile(t, "in.xml", "<?xml version=\"1.0\"?>\n<catalog><item>x</item></catalog>\n<!-- trailer -->\n")
	recs, err := ex.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x"}}, fieldsOf(recs))

	roots := logs.FilterMessage("xml document root").All()
	require.Len(t, roots, 1)
	assert.Equal(t, path, roots[0].ContextMap()["input"])
	assert.Equal(t, "catalog", roots[0].ContextMap()["root"])
}
