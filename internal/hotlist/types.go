// Package hotlist defines the uniform shape every platform is transformed into
package hotlist

import "time"

// Item is one entry of a platform's hot list
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Desc      string `json:"desc,omitempty"`
	Cover     string `json:"cover,omitempty"`
	Author    string `json:"author,omitempty"`
	Hot       int64  `json:"hot"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix milliseconds
	URL       string `json:"url"`
	MobileURL string `json:"mobileUrl"`
}

// Info describes a platform's list
type Info struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link"`
}

// List is a resolved hot list ready to be served
type List struct {
	Info
	Total      int       `json:"total"`
	FromCache  bool      `json:"fromCache"`
	UpdateTime time.Time `json:"updateTime"`
	Data       []Item    `json:"data"`
}

// Truncate keeps at most limit items; limit <= 0 keeps everything
func (l *List) Truncate(limit int) {
	if limit > 0 && len(l.Data) > limit {
		l.Data = l.Data[:limit]
	}
	l.Total = len(l.Data)
}
