package providers

import (
	"github.com/briangreenhill/hotlist/internal/hotlist"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

const juejinRankURL = "https://api.juejin.cn/content_api/v1/content/article_rank"

var juejinCategories = map[string]string{
	"all":      "1",
	"backend":  "6809637769959178254",
	"frontend": "6809637767543259144",
	"android":  "6809635626879549454",
	"ios":      "6809635626661445640",
	"ai":       "6809637773935378440",
}

type juejinResponse struct {
	ErrNo  int    `json:"err_no"`
	ErrMsg string `json:"err_msg"`
	Data   []struct {
		Content struct {
			ContentID string `json:"content_id"`
			Title     string `json:"title"`
			Brief     string `json:"brief"`
		} `json:"content"`
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
		ContentCounter struct {
			HotRank int64 `json:"hot_rank"`
		} `json:"content_counter"`
	} `json:"data"`
}

// Juejin serves the article hot rank
type Juejin struct{}

func NewJuejin() *Juejin { return &Juejin{} }

func (j *Juejin) Name() string { return "juejin" }

func (j *Juejin) Info() hotlist.Info {
	return hotlist.Info{
		Name:  j.Name(),
		Title: "稀土掘金",
		Type:  "文章榜",
		Link:  "https://juejin.cn/hot/articles",
	}
}

func (j *Juejin) Request(q Query) upstream.Request {
	category, ok := juejinCategories[q.Get("type", "all")]
	if !ok {
		category = juejinCategories["all"]
	}
	return upstream.Request{
		URL:    juejinRankURL,
		Params: map[string]string{"category_id": category, "type": "hot"},
	}
}

func (j *Juejin) Parse(body []byte) ([]hotlist.Item, error) {
	resp, err := decode[juejinResponse](j.Name(), body)
	if err != nil {
		return nil, err
	}
	if resp.ErrNo != 0 {
		return nil, upstreamRejected(j.Name(), resp.ErrNo, resp.ErrMsg)
	}

	items := make([]hotlist.Item, 0, len(resp.Data))
	for _, v := range resp.Data {
		url := "https://juejin.cn/post/" + v.Content.ContentID
		items = append(items, hotlist.Item{
			ID:        v.Content.ContentID,
			Title:     v.Content.Title,
			Desc:      v.Content.Brief,
			Author:    v.Author.Name,
			Hot:       v.ContentCounter.HotRank,
			URL:       url,
			MobileURL: url,
		})
	}
	return items, nil
}
