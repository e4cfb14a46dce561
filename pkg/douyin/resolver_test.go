package douyin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyindl/internal/testutil"
	"douyindl/pkg/douyin"
	errs "douyindl/pkg/errors"
	"douyindl/pkg/logger"
)

func TestExtractSecUserID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"profile url", "https://www.douyin.com/user/MS4wLjABAAAAabc_d-e.f?from_tab_name=main", "MS4wLjABAAAAabc_d-e.f", true},
		{"share redirect", "https://www.iesdouyin.com/share/user/MS4wLjABAAAAxyz?u_code=1&sec_uid=MS4wLjABAAAAxyz", "MS4wLjABAAAAxyz", true},
		{"query param", "https://www.iesdouyin.com/web/api/v2/aweme/post/?sec_user_id=MS4wLjABAAAAxyz&count=21", "MS4wLjABAAAAxyz", true},
		{"numeric path wins over query", "https://www.iesdouyin.com/share/user/123?sec_user_id=MS4wLjABAAAAxyz", "123", true},
		{"bare id", "look at MS4wLjABAAAAbare_id-1 please", "MS4wLjABAAAAbare_id-1", true},
		{"path wins over query", "https://www.douyin.com/user/first?sec_user_id=second", "first", true},
		{"video link", "https://www.douyin.com/video/7300000000000000000", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := douyin.ExtractSecUserID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeInput(t *testing.T) {
	share := "7.99 复制打开抖音，看看【某某的作品】 https://v.douyin.com/iRNBho6u/ 1@8.com :9pm"
	assert.Equal(t, "https://v.douyin.com/iRNBho6u/", douyin.NormalizeInput(share))
	assert.Equal(t, "https://www.douyin.com/user/x", douyin.NormalizeInput("  https://www.douyin.com/user/x  "))
	assert.Equal(t, "MS4wLjABAAAA", douyin.NormalizeInput(" MS4wLjABAAAA "))
}

func TestResolveDirect(t *testing.T) {
	r := douyin.NewResolver(nil, "", logger.NewNopLogger())
	id, err := r.Resolve(context.Background(), "https://www.douyin.com/user/MS4wLjABAAAAdirect")
	require.NoError(t, err)
	assert.Equal(t, "MS4wLjABAAAAdirect", id)
}

func TestResolveShortLink(t *testing.T) {
	f := testutil.NewFakeDouyin()
	defer f.Close()
	short := f.AddShortLink("abc123", f.BaseURL()+"/user/MS4wLjABAAAAshort?previous_page=app_code_link")

	r := douyin.NewResolver(nil, "", logger.NewNopLogger())
	id, err := r.Resolve(context.Background(), "打开抖音 "+short+" 复制此链接")
	require.NoError(t, err)
	assert.Equal(t, "MS4wLjABAAAAshort", id)
}

func TestResolveFailure(t *testing.T) {
	f := testutil.NewFakeDouyin()
	defer f.Close()

	r := douyin.NewResolver(nil, "", logger.NewNopLogger())
	_, err := r.Resolve(context.Background(), f.BaseURL()+"/share/missing/")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeResolution))

	_, err = r.Resolve(context.Background(), "   ")
	assert.True(t, errs.IsType(err, errs.ErrorTypeResolution))
}
