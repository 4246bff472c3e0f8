package domain

// ObjectLocation describes where one uploaded artifact can be retrieved from.
type ObjectLocation struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// MediaInfo carries descriptive metadata gathered during the fetch stage.
type MediaInfo struct {
	Title       string `json:"title,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	SourceURL   string `json:"source_url"`
	Extractor   string `json:"extractor,omitempty"`
}

// Result is the structured payload persisted when a task completes. It lists
// the storage locations of every uploaded artifact plus the media metadata.
type Result struct {
	ProcessingID string          `json:"processing_id"`
	MediaInfo    MediaInfo       `json:"media_info"`
	Media        *ObjectLocation `json:"media,omitempty"`
	Metadata     *ObjectLocation `json:"metadata,omitempty"`
	Thumbnail    *ObjectLocation `json:"thumbnail,omitempty"`
}

// Locations returns the non-nil object locations in upload order.
func (r *Result) Locations() []ObjectLocation {
	var locs []ObjectLocation
	for _, l := range []*ObjectLocation{r.Media, r.Metadata, r.Thumbnail} {
		if l != nil {
			locs = append(locs, *l)
		}
	}
	return locs
}
