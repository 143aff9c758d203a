package providers

import (
	"net/url"

	"github.com/briangreenhill/hotlist/internal/hotlist"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

const weiboHotSearchURL = "https://weibo.com/ajax/side/hotSearch"

type weiboResponse struct {
	OK   int `json:"ok"`
	Data struct {
		Realtime []struct {
			Mid         string `json:"mid"`
			Word        string `json:"word"`
			Note        string `json:"note"`
			Num         int64  `json:"num"`
			LabelName   string `json:"label_name"`
			OnboardTime int64  `json:"onboard_time"`
			IsAd        int    `json:"is_ad"`
		} `json:"realtime"`
	} `json:"data"`
}

// Weibo serves the realtime hot search
type Weibo struct{}

func NewWeibo() *Weibo { return &Weibo{} }

func (w *Weibo) Name() string { return "weibo" }

func (w *Weibo) Info() hotlist.Info {
	return hotlist.Info{
		Name:        w.Name(),
		Title:       "微博",
		Type:        "热搜榜",
		Description: "实时热点，每分钟更新一次",
		Link:        "https://s.weibo.com/top/summary/",
	}
}

func (w *Weibo) Request(Query) upstream.Request {
	return upstream.Request{
		URL:     weiboHotSearchURL,
		Headers: map[string]string{"Referer": "https://weibo.com/"},
	}
}

func (w *Weibo) Parse(body []byte) ([]hotlist.Item, error) {
	resp, err := decode[weiboResponse](w.Name(), body)
	if err != nil {
		return nil, err
	}
	if resp.OK != 1 {
		return nil, upstreamRejected(w.Name(), resp.OK, "not ok")
	}

	items := make([]hotlist.Item, 0, len(resp.Data.Realtime))
	for _, v := range resp.Data.Realtime {
		// promoted entries are not part of the ranking
		if v.IsAd == 1 {
			continue
		}
		topic := url.QueryEscape("#" + v.Word + "#")
		id := v.Mid
		if id == "" {
			id = v.Word
		}
		items = append(items, hotlist.Item{
			ID:        id,
			Title:     v.Word,
			Desc:      v.Note,
			Author:    v.LabelName,
			Hot:       v.Num,
			Timestamp: v.OnboardTime * 1000,
			URL:       "https://s.weibo.com/weibo?q=" + topic + "&Refer=top",
			MobileURL: "https://m.weibo.cn/search?containerid=" + url.QueryEscape("100103type=1&q="+"#"+v.Word+"#"),
		})
	}
	return items, nil
}
