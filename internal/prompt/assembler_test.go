package prompt

import (
	"fmt"
	"testing"

	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/config"
	"github.com/runixer/ipsi/internal/i18n"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/policy"
	"github.com/runixer/ipsi/internal/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fields = catalog.Fields{Institution: "학교명", Track: "전형"}

func newAssembler(t *testing.T, lang string) *Assembler {
	t.Helper()
	tr, err := i18n.NewTranslator("ko")
	require.NoError(t, err)
	rules := policy.FromConfig(config.PolicyConfig{
		BorderlineTolerance: 0.1,
		MeritMaxGap:         0.7,
		HolisticKeywords:    []string{"학생부종합"},
	})
	return NewAssembler(tr, lang, rules, fields, 4)
}

func history(n int) []openrouter.Message {
	msgs := make([]openrouter.Message, 0, n)
	for i := 1; i <= n; i++ {
		role := openrouter.RoleUser
		if i%2 == 0 {
			role = openrouter.RoleAssistant
		}
		msgs = append(msgs, openrouter.Message{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	return msgs
}

func TestBuild_ForwardsLastFourTurnsInOrder(t *testing.T) {
	a := newAssembler(t, "ko")

	msgs, err := a.Build(Request{
		Institution: "서울대",
		Track:       "학생부종합",
		Score:       2.5,
		Quality:     policy.QualityTop,
		Grounding:   retrieval.Grounding{Context: "[서울대 학생부종합] 50% cut 2.0"},
		History:     history(6),
	})
	require.NoError(t, err)

	require.Len(t, msgs, 5)
	assert.Equal(t, openrouter.RoleSystem, msgs[0].Role)

	want := []openrouter.Message{
		{Role: openrouter.RoleUser, Content: "turn 3"},
		{Role: openrouter.RoleAssistant, Content: "turn 4"},
		{Role: openrouter.RoleUser, Content: "turn 5"},
		{Role: openrouter.RoleAssistant, Content: "turn 6"},
	}
	assert.Equal(t, want, msgs[1:])
}

func TestBuild_WindowEndsOnCurrentQuestion(t *testing.T) {
	a := newAssembler(t, "ko")

	msgs, err := a.Build(Request{Score: 2.5, History: history(7)})
	require.NoError(t, err)

	require.Len(t, msgs, 5)
	want := []openrouter.Message{
		{Role: openrouter.RoleAssistant, Content: "turn 4"},
		{Role: openrouter.RoleUser, Content: "turn 5"},
		{Role: openrouter.RoleAssistant, Content: "turn 6"},
		{Role: openrouter.RoleUser, Content: "turn 7"},
	}
	assert.Equal(t, want, msgs[1:])
}

func TestBuild_ShortHistory(t *testing.T) {
	a := newAssembler(t, "ko")

	msgs, err := a.Build(Request{Score: 3, History: history(1)})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "turn 1", msgs[1].Content)
}

func TestSystemPrompt_Korean(t *testing.T) {
	a := newAssembler(t, "ko")

	out, err := a.SystemPrompt(Request{
		Institution: "서울대",
		Track:       "학생부종합",
		Score:       2.5,
		Quality:     policy.QualityTop,
		Grounding: retrieval.Grounding{
			Matches: []retrieval.Match{{
				Document: "50% cut 2.0, 70% cut 2.45",
				Metadata: map[string]any{"학교명": "서울대", "전형": "학생부 종합"},
			}},
			Context: "[서울대 학생부 종합] 50% cut 2.0, 70% cut 2.45",
		},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "당신은 입시 컨설턴트입니다.")
	assert.Contains(t, out, "- 희망 대학: 서울대")
	assert.Contains(t, out, "- 희망 전형: 학생부종합 (학생부종합 계열)")
	assert.Contains(t, out, "- 내신: 2.50등급")
	assert.Contains(t, out, "- 생기부: 최상 (특목고)")
	assert.Contains(t, out, "0.10 이하")
	assert.Contains(t, out, "0.70 이하")
	assert.Contains(t, out, "- [서울대 학생부 종합] 50% 2.00: 소신")
	assert.Contains(t, out, "- [서울대 학생부 종합] 70% 2.45: 적정")
	assert.Contains(t, out, "[서울대 학생부 종합] 50% cut 2.0, 70% cut 2.45")
	assert.Contains(t, out, "판정(안정/적정/소신/불리)")
}

func TestSystemPrompt_FallbackAndAny(t *testing.T) {
	a := newAssembler(t, "ko")

	out, err := a.SystemPrompt(Request{
		Institution: "any",
		Track:       "",
		Score:       4,
		Quality:     policy.QualityLow,
		Grounding: retrieval.Grounding{
			Context:  "조건에 맞는 데이터가 없습니다. 일반적인 입시 조언을 제공합니다.",
			Fallback: true,
		},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "- 희망 대학: 전체")
	assert.Contains(t, out, "- 희망 전형: 전체\n")
	assert.Contains(t, out, "조건에 맞는 데이터가 없습니다. 일반적인 입시 조언을 제공합니다.")
	assert.NotContains(t, out, "[사전 판정]")
}

func TestSystemPrompt_English(t *testing.T) {
	a := newAssembler(t, "en")

	out, err := a.SystemPrompt(Request{Institution: "any", Track: "논술", Score: 3.0, Quality: policy.QualityMedium})
	require.NoError(t, err)

	assert.Contains(t, out, "You are a university admissions consultant.")
	assert.Contains(t, out, "- Target track: 논술\n")
	assert.Contains(t, out, "- Student record: Medium (average)")
	assert.Contains(t, out, "reach-with-merit")
}

func TestLabels(t *testing.T) {
	a := newAssembler(t, "ko")
	assert.Equal(t, "상 (우수)", a.QualityLabel(policy.QualityHigh))
	assert.Equal(t, "불리", a.OutcomeLabel(policy.OutcomeUnfavorable))
}

func TestWindow(t *testing.T) {
	h := history(6)

	got := Window(h, 4)
	require.Len(t, got, 4)
	assert.Equal(t, "turn 3", got[0].Content)

	got[0].Content = "mutated"
	assert.Equal(t, "turn 3", h[2].Content, "window must not alias history")

	assert.Len(t, Window(h, 10), 6)
	assert.Nil(t, Window(h, 0))
	assert.Nil(t, Window(nil, 4))
}

func TestNewAssembler_DefaultWindow(t *testing.T) {
	tr, err := i18n.NewTranslator("ko")
	require.NoError(t, err)
	a := NewAssembler(tr, "ko", policy.Rules{}, fields, 0)

	msgs, err := a.Build(Request{Score: 1, History: history(7)})
	require.NoError(t, err)
	assert.Len(t, msgs, DefaultWindow+1)
}
