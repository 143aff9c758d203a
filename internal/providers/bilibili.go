package providers

import (
	"github.com/briangreenhill/hotlist/internal/hotlist"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

const bilibiliRankingURL = "https://api.bilibili.com/x/web-interface/ranking/v2"

// bilibiliPartitions maps the "type" query to a ranking partition id
var bilibiliPartitions = map[string]string{
	"all":           "0",
	"anime":         "1",
	"music":         "3",
	"game":          "4",
	"entertainment": "5",
	"tech":          "188",
	"knowledge":     "36",
	"life":          "160",
}

type bilibiliResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		List []struct {
			BVID  string `json:"bvid"`
			Title string `json:"title"`
			Desc  string `json:"desc"`
			Pic   string `json:"pic"`
			Owner struct {
				Name string `json:"name"`
			} `json:"owner"`
			Stat struct {
				View int64 `json:"view"`
			} `json:"stat"`
			PubDate int64 `json:"pubdate"`
		} `json:"list"`
	} `json:"data"`
}

// Bilibili serves the video ranking
type Bilibili struct{}

func NewBilibili() *Bilibili { return &Bilibili{} }

func (b *Bilibili) Name() string { return "bilibili" }

func (b *Bilibili) Info() hotlist.Info {
	return hotlist.Info{
		Name:        b.Name(),
		Title:       "哔哩哔哩",
		Type:        "热门榜",
		Description: "你所热爱的，就是你的生活",
		Link:        "https://www.bilibili.com/v/popular/rank/all",
	}
}

func (b *Bilibili) Request(q Query) upstream.Request {
	rid, ok := bilibiliPartitions[q.Get("type", "all")]
	if !ok {
		rid = "0"
	}
	return upstream.Request{
		URL:     bilibiliRankingURL,
		Params:  map[string]string{"rid": rid, "type": "all"},
		Headers: map[string]string{"Referer": "https://www.bilibili.com/"},
	}
}

func (b *Bilibili) Parse(body []byte) ([]hotlist.Item, error) {
	resp, err := decode[bilibiliResponse](b.Name(), body)
	if err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, upstreamRejected(b.Name(), resp.Code, resp.Message)
	}

	items := make([]hotlist.Item, 0, len(resp.Data.List))
	for _, v := range resp.Data.List {
		items = append(items, hotlist.Item{
			ID:        v.BVID,
			Title:     v.Title,
			Desc:      v.Desc,
			Cover:     v.Pic,
			Author:    v.Owner.Name,
			Hot:       v.Stat.View,
			Timestamp: v.PubDate * 1000,
			URL:       "https://www.bilibili.com/video/" + v.BVID,
			MobileURL: "https://m.bilibili.com/video/" + v.BVID,
		})
	}
	return items, nil
}
