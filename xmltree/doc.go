// Package xmltree is a minimal, namespace-aware XML element tree.
//
// It is the element-tree layer the PSRP value codec (package psrpval) builds
// and walks. It is intentionally not a general-purpose XML library: there is
// no schema validation, no DTD/entity handling, and no streaming API. Callers
// either build a tree with New/WithAttr/WithChild/WithText and call Write, or
// call Parse on bytes already produced by an XML lexer/tree builder and walk
// the resulting Element with Children/Attr/Text.
package xmltree
