package disclosure

// Excerpt is the display form of a post body.
type Excerpt struct {
	Text       string `json:"text"`
	Truncated  bool   `json:"truncated"`
	TotalChars int    `json:"total_chars"`
	Expanded   bool   `json:"expanded"`
}

// View truncates body for display. Collapsed views stop at BaseLimit,
// expanded views at MaxChars(likeCount). Pure read; nothing is persisted.
func View(body string, likeCount int, expanded bool) Excerpt {
	limit := BaseLimit
	if expanded {
		limit = MaxChars(likeCount)
	}

	runes := []rune(body)
	ex := Excerpt{
		Text:       body,
		TotalChars: len(runes),
		Expanded:   expanded,
	}
	if len(runes) > limit {
		ex.Text = string(runes[:limit])
		ex.Truncated = true
	}
	return ex
}
