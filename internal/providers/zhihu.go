package providers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/briangreenhill/hotlist/internal/hotlist"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

const zhihuHotURL = "https://api.zhihu.com/topstory/hot-lists/total"

type zhihuResponse struct {
	Data []struct {
		Target struct {
			ID      json.Number `json:"id"`
			Title   string      `json:"title"`
			Excerpt string      `json:"excerpt"`
			Created int64       `json:"created"`
		} `json:"target"`
		DetailText string `json:"detail_text"`
		Children   []struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"children"`
	} `json:"data"`
}

// Zhihu serves the question hot list
type Zhihu struct{}

func NewZhihu() *Zhihu { return &Zhihu{} }

func (z *Zhihu) Name() string { return "zhihu" }

func (z *Zhihu) Info() hotlist.Info {
	return hotlist.Info{
		Name:  z.Name(),
		Title: "知乎",
		Type:  "热榜",
		Link:  "https://www.zhihu.com/hot",
	}
}

func (z *Zhihu) Request(Query) upstream.Request {
	return upstream.Request{
		URL:    zhihuHotURL,
		Params: map[string]string{"limit": "50"},
	}
}

func (z *Zhihu) Parse(body []byte) ([]hotlist.Item, error) {
	resp, err := decode[zhihuResponse](z.Name(), body)
	if err != nil {
		return nil, err
	}

	items := make([]hotlist.Item, 0, len(resp.Data))
	for _, v := range resp.Data {
		id := v.Target.ID.String()
		item := hotlist.Item{
			ID:        id,
			Title:     v.Target.Title,
			Desc:      v.Target.Excerpt,
			Hot:       parseHeat(v.DetailText),
			Timestamp: v.Target.Created * 1000,
			URL:       "https://www.zhihu.com/question/" + id,
			MobileURL: "https://www.zhihu.com/question/" + id,
		}
		if len(v.Children) > 0 {
			item.Cover = v.Children[0].Thumbnail
		}
		items = append(items, item)
	}
	return items, nil
}

// parseHeat turns texts like "1234 万热度" into a number. Unparseable text is 0.
func parseHeat(text string) int64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	num := fields[0]
	multiplier := 1.0
	if len(fields) > 1 && strings.HasPrefix(fields[1], "万") {
		multiplier = 10000
	}
	if trimmed, ok := strings.CutSuffix(num, "万"); ok {
		num, multiplier = trimmed, 10000
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return int64(f * multiplier)
}
