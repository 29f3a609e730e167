package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin-assistant-backend/internal/types"
)

func user(s string) types.Message      { return types.Message{Role: types.RoleUser, Content: s} }
func assistant(s string) types.Message { return types.Message{Role: types.RoleAssistant, Content: s} }

func TestRuleResponderReplies(t *testing.T) {
	r := NewRuleResponder(DefaultRules())

	cases := []struct {
		name string
		text string
		want string
	}{
		{"greeting", "你好", "您好！很高兴为您服务。"},
		{"greeting english mixed case", "HeLLo there", "您好！很高兴为您服务。"},
		{"gis", "什么是GIS", "地理信息系统（GIS）用于采集、存储、分析和展示地理空间数据。"},
		{"gis lower case", "tell me about gis", "地理信息系统（GIS）用于采集、存储、分析和展示地理空间数据。"},
		{"gis chinese", "地理信息有什么用", "地理信息系统（GIS）用于采集、存储、分析和展示地理空间数据。"},
		{"brand wins over gis", "SuperMap GIS", "超图是领先的地理信息系统（GIS）平台提供商，支持多种空间数据分析与可视化。"},
		{"brand chinese", "介绍一下超图", "超图是领先的地理信息系统（GIS）平台提供商，支持多种空间数据分析与可视化。"},
		{"fallback", "今天天气怎么样", "很抱歉，我暂时无法理解您的问题，但我会不断学习进步！"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Generate(context.Background(), []types.Message{assistant("seed"), user(tc.text)})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRuleResponderUsesLatestUserMessage(t *testing.T) {
	r := NewRuleResponder(DefaultRules())

	got, err := r.Generate(context.Background(), []types.Message{
		user("你好"),
		assistant("您好！很高兴为您服务。"),
		user("GIS 是什么"),
		assistant("trailing assistant turn mentioning 超图"),
	})
	require.NoError(t, err)
	assert.Equal(t, "地理信息系统（GIS）用于采集、存储、分析和展示地理空间数据。", got)
}

func TestRuleResponderEmptyHistory(t *testing.T) {
	r := NewRuleResponder(DefaultRules())

	got, err := r.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRules().Fallback, got)
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: flood
    pattern: "水位|water level"
    reply: "当前水位正常。"
`), 0o600))

	rs, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 1)

	assert.Equal(t, "当前水位正常。", rs.Match("Water Level?"))
	assert.Equal(t, DefaultRules().Fallback, rs.Match("nothing"))
}

func TestParseRulesRejectsInvalid(t *testing.T) {
	_, err := ParseRules([]byte("rules:\n  - pattern: \"(\"\n    reply: x\n"))
	require.ErrorIs(t, err, ErrBadRule)

	_, err = ParseRules([]byte("rules:\n  - name: empty\n    reply: x\n"))
	require.ErrorIs(t, err, ErrBadRule)

	_, err = ParseRules([]byte("rules: [oops"))
	require.Error(t, err)
}

func TestNewSelectsMode(t *testing.T) {
	r, err := New(Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, ModeRules, r.Mode())

	r, err = New(Options{APIKey: "sk-test", Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, ModeOpenAI, r.Mode())

	_, err = New(Options{RulesFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}
