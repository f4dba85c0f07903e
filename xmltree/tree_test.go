package xmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSimpleElement(t *testing.T) {
	root := New("", "Obj").WithAttr("N", "Foo").WithText("bar")
	out, err := Write(root)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<Obj N="Foo">bar</Obj>`)
}

func TestWriteResolvesDeclaredAlias(t *testing.T) {
	root := New("urn:a", "Envelope").Declare("s", "urn:a")
	child := New("urn:a", "Body")
	root.WithChild(child)

	out, err := Write(root)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<s:Envelope xmlns:s="urn:a"><s:Body/></s:Envelope>`)
}

func TestWriteMissingAliasMap(t *testing.T) {
	root := New("urn:a", "Envelope")
	_, err := Write(root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingAliasMap)
}

func TestWriteNamespaceNotDeclared(t *testing.T) {
	root := New("urn:a", "Envelope").Declare("s", "urn:other")
	_, err := Write(root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNamespaceNotDeclared)
}

func TestWriteNamespaceHasNoAlias(t *testing.T) {
	root := New("urn:a", "Envelope").Declare("", "urn:a")
	_, err := Write(root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNamespaceHasNoAlias)
}

func TestChildScopeInheritsParentDeclarations(t *testing.T) {
	root := New("urn:a", "Envelope").Declare("s", "urn:a").Declare("w", "urn:w")
	header := New("urn:w", "Header")
	root.WithChild(header)

	out, err := Write(root)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<w:Header/>`)
}

func TestParseRoundTripsQualifiedNames(t *testing.T) {
	root := New("urn:a", "Envelope").Declare("s", "urn:a")
	body := New("urn:a", "Body").WithText("hi")
	root.WithChild(body)

	out, err := Write(root)
	require.NoError(t, err)

	parsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "Envelope", parsed.Name)
	assert.Equal(t, "urn:a", parsed.NS)
	require.Len(t, parsed.Children, 1)
	assert.Equal(t, "Body", parsed.Children[0].Name)
	assert.Equal(t, "hi", parsed.Children[0].Text)
}

func TestElementChildAndAttrHelpers(t *testing.T) {
	root := New("", "Props")
	root.WithChild(New("", "S").WithAttr("N", "Name").WithText("val"))

	child := root.Child("", "S")
	require.NotNil(t, child)
	n, ok := child.Attr("N")
	assert.True(t, ok)
	assert.Equal(t, "Name", n)

	assert.Nil(t, root.Child("", "Missing"))
}
