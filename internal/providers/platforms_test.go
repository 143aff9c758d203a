package providers

import (
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBilibiliParse(t *testing.T) {
	body := `{"code":0,"message":"0","data":{"list":[
		{"bvid":"BV1xx","title":"video","desc":"d","pic":"http://i0.hdslb.com/a.jpg",
		 "owner":{"name":"up"},"stat":{"view":12345},"pubdate":1700000000}]}}`

	items, err := NewBilibili().Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "BV1xx", items[0].ID)
	assert.Equal(t, "up", items[0].Author)
	assert.Equal(t, int64(12345), items[0].Hot)
	assert.Equal(t, int64(1700000000000), items[0].Timestamp)
	assert.Equal(t, "https://www.bilibili.com/video/BV1xx", items[0].URL)
}

func TestBilibiliRejectedCode(t *testing.T) {
	_, err := NewBilibili().Parse([]byte(`{"code":-352,"message":"risk control"}`))
	require.Error(t, err)
	assert.Equal(t, platformerrors.CodeUnavailable, platformerrors.GetCode(err))
}

func TestBilibiliRequestType(t *testing.T) {
	b := NewBilibili()
	assert.Equal(t, "3", b.Request(Query{"type": "music"}).Params["rid"])
	assert.Equal(t, "0", b.Request(Query{"type": "bogus"}).Params["rid"])
	assert.NotEqual(t, b.Request(Query{"type": "music"}).Key(), b.Request(nil).Key())
}

func TestJuejinParse(t *testing.T) {
	body := `{"err_no":0,"err_msg":"success","data":[
		{"content":{"content_id":"730","title":"Go tips","brief":"b"},
		 "author":{"name":"gopher"},"content_counter":{"hot_rank":987}}]}`

	items, err := NewJuejin().Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "730", items[0].ID)
	assert.Equal(t, int64(987), items[0].Hot)
	assert.Equal(t, "https://juejin.cn/post/730", items[0].URL)
}

func TestV2EXParse(t *testing.T) {
	body := `[{"id":101,"title":"topic","content":"c","url":"https://www.v2ex.com/t/101",
		"replies":42,"created":1700000000,"member":{"username":"livid"}}]`

	items, err := NewV2EX().Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "101", items[0].ID)
	assert.Equal(t, "livid", items[0].Author)
	assert.Equal(t, int64(42), items[0].Hot)
}

func TestZhihuParse(t *testing.T) {
	body := `{"data":[{"target":{"id":6001,"title":"q","excerpt":"e","created":1700000000},
		"detail_text":"1234 万热度","children":[{"thumbnail":"https://pic.zhimg.com/x.jpg"}]}]}`

	items, err := NewZhihu().Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "6001", items[0].ID)
	assert.Equal(t, int64(12340000), items[0].Hot)
	assert.Equal(t, "https://pic.zhimg.com/x.jpg", items[0].Cover)
	assert.Equal(t, "https://www.zhihu.com/question/6001", items[0].URL)
}

func TestParseHeat(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1234 万热度", 12340000},
		{"12.5万", 125000},
		{"980 热度", 980},
		{"", 0},
		{"hot", 0},
	}
	for _, tt := range tests {
		if got := parseHeat(tt.in); got != tt.want {
			t.Errorf("parseHeat(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWeiboParseSkipsAds(t *testing.T) {
	body := `{"ok":1,"data":{"realtime":[
		{"mid":"1","word":"news","note":"news","num":500,"label_name":"热","onboard_time":1700000000},
		{"word":"promo","num":1,"is_ad":1}]}}`

	items, err := NewWeibo().Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "news", items[0].Title)
	assert.Equal(t, int64(500), items[0].Hot)
	assert.Equal(t, "https://s.weibo.com/weibo?q=%23news%23&Refer=top", items[0].URL)
}

func TestMalformedBodyIsSchemaError(t *testing.T) {
	for _, p := range Builtin() {
		t.Run(p.Name(), func(t *testing.T) {
			_, err := p.Parse([]byte("<html>blocked</html>"))
			require.Error(t, err)
			assert.Equal(t, platformerrors.CodeSchemaFailed, platformerrors.GetCode(err))
			assert.False(t, platformerrors.IsRetryable(err))
		})
	}
}
