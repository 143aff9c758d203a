package providers

import (
	"strconv"

	"github.com/briangreenhill/hotlist/internal/hotlist"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

const v2exHotURL = "https://www.v2ex.com/api/topics/hot.json"

type v2exTopic struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Replies int64  `json:"replies"`
	Created int64  `json:"created"`
	Member  struct {
		Username string `json:"username"`
	} `json:"member"`
}

// V2EX serves the hot topics
type V2EX struct{}

func NewV2EX() *V2EX { return &V2EX{} }

func (v *V2EX) Name() string { return "v2ex" }

func (v *V2EX) Info() hotlist.Info {
	return hotlist.Info{
		Name:  v.Name(),
		Title: "V2EX",
		Type:  "主题榜",
		Link:  "https://www.v2ex.com/",
	}
}

func (v *V2EX) Request(Query) upstream.Request {
	return upstream.Request{URL: v2exHotURL}
}

func (v *V2EX) Parse(body []byte) ([]hotlist.Item, error) {
	topics, err := decode[[]v2exTopic](v.Name(), body)
	if err != nil {
		return nil, err
	}

	items := make([]hotlist.Item, 0, len(topics))
	for _, t := range topics {
		items = append(items, hotlist.Item{
			ID:        strconv.FormatInt(t.ID, 10),
			Title:     t.Title,
			Desc:      t.Content,
			Author:    t.Member.Username,
			Hot:       t.Replies,
			Timestamp: t.Created * 1000,
			URL:       t.URL,
			MobileURL: t.URL,
		})
	}
	return items, nil
}
