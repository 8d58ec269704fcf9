package assets

import (
	"fmt"
	"strconv"
)

// Reference replaces a binary image node in a result tree after the image
// has been written to storage.
type Reference struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Size        string `json:"size"`
	Format      string `json:"format,omitempty"`
	ContentType string `json:"content_type"`
	Context     string `json:"context"`
	Folder      string `json:"folder"`
	LocalPath   string `json:"local_path"`
}

// SaveFailure replaces a binary image node whose save failed. Failures are
// captured as data; the tree walk never aborts.
type SaveFailure struct {
	Type       string `json:"type"`
	Error      string `json:"error"`
	ObjectType string `json:"object_type"`
	Context    string `json:"context"`
}

// Externalizer rewrites result trees, replacing embedded binary images
// with storage references.
type Externalizer struct {
	store     *Store
	sessionID string
	folder    string

	// Count is the number of binary assets encountered during the walk,
	// including ones whose save failed.
	Count int

	// Bytes is the total size of the encountered assets' raw data.
	Bytes int
}

// NewExternalizer prepares a rewrite pass for one request. All assets from
// the request share one folder derived from the origin name and session.
func NewExternalizer(store *Store, sessionID, originName string) *Externalizer {
	return &Externalizer{
		store:     store,
		sessionID: sessionID,
		folder:    FolderName(originName, sessionID),
	}
}

// Externalize walks the tree depth-first and replaces every *BinaryAsset
// with a Reference (or SaveFailure) at the same position. Mapping keys,
// sequence order and length, and all non-binary values are preserved.
func (e *Externalizer) Externalize(tree any) any {
	return e.walk(tree, "")
}

// ExternalizeUnder walks tree like Externalize, but roots context paths at
// the given key, matching the response field the tree is returned under.
func (e *Externalizer) ExternalizeUnder(root string, tree any) any {
	return e.walk(tree, root)
}

func (e *Externalizer) walk(node any, path string) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = e.walk(val, childPath(path, key))
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = e.walk(val, path+"["+strconv.Itoa(i)+"]")
		}
		return out
	case *BinaryAsset:
		e.Count++
		e.Bytes += len(v.Data)
		return e.save(v, path)
	default:
		return node
	}
}

// save writes one asset and builds its replacement record.
func (e *Externalizer) save(asset *BinaryAsset, path string) any {
	saved, err := e.store.Save(asset, e.folder)
	if err != nil {
		return SaveFailure{
			Type:       "image_error",
			Error:      err.Error(),
			ObjectType: fmt.Sprintf("%T", asset),
			Context:    path,
		}
	}

	return Reference{
		Type:        "extracted_image",
		URL:         saved.URL,
		Size:        asset.SizeLabel(),
		Format:      asset.Format,
		ContentType: "image/png",
		Context:     path,
		Folder:      e.folder,
		LocalPath:   saved.LocalPath,
	}
}

// childPath appends a mapping key to a dot/bracket context path.
func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
