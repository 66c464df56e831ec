package dto

type GenerateDocsParams struct {
	SessionID string   `json:"sessionId" validate:"required"`
	Format    string   `json:"format,omitempty"`
	Formats   []string `json:"formats,omitempty"`
}

// AllFormats merges the singular and plural parameter spellings.
func (p *GenerateDocsParams) AllFormats() []string {
	formats := append([]string{}, p.Formats...)
	if p.Format != "" {
		for _, f := range formats {
			if f == p.Format {
				return formats
			}
		}
		formats = append(formats, p.Format)
	}
	return formats
}

type DocumentDTO struct {
	Type   string `json:"type"`
	Format string `json:"format"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
}

type GenerateDocsResult struct {
	Stage     string        `json:"stage"`
	Documents []DocumentDTO `json:"documents"`
}
