package domain

// Asset is an auxiliary file (usually an image) referenced by a description
// document and staged next to it for the engine.
type Asset struct {
	Name string
	Data []byte
}

// RenderRequest carries everything needed for one engine invocation. It lives
// for a single request and is discarded afterwards.
type RenderRequest struct {
	// YAML is the harness description document.
	YAML []byte
	// Assets are staged under a fixed subdirectory, keeping their original
	// base names. Order matters: on a name collision the later asset wins.
	Assets []Asset
	Format Format
	// OutputName, when set, becomes the artifact's suggested filename.
	OutputName string
}

// Artifact is the rendered output. Immutable once produced; the response
// layer streams it and lets it go.
type Artifact struct {
	Bytes    []byte
	MIMEType string
	Filename string
}
