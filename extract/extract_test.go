package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"largest wins", "Win up to $500 or our grand prize of $10,000!", "$10,000", true},
		{"street numbers ignored", "Room 99 at 45 Main St", "", false},
		{"dollars suffix", "Awards of 5,000 dollars each", "$5,000", true},
		{"shorthand", "A 10k award for seniors", "$10,000", true},
		{"dollar shorthand", "Up to $2.5K available", "$2,500", true},
		{"space after sign", "Prize: $ 750", "$750", true},
		{"cents dropped", "Stipend of $1,250.00 per term", "$1,250", true},
		{"below floor", "Application fee $25", "", false},
		{"above ceiling", "Grand prize $99999999999999999999999", "", false},
		{"ceiling keeps sane amounts", "Call 99999999999999999999 dollars or win $4,000", "$4,000", true},
		{"empty", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Amount(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountCustomFloor(t *testing.T) {
	e := New(Config{MinAmount: 1000})
	_, ok := e.Amount("Grants of $500")
	assert.False(t, ok)

	got, ok := e.Amount("Grants of $500 and $1,500")
	require.True(t, ok)
	assert.Equal(t, "$1,500", got)
}

func TestDeadlineStrictPatterns(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{
			name: "month name on keyword line",
			text: "Application Deadline: March 15, 2025\nApply now.",
			want: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "ordinal suffix",
			text: "Submissions close soon. The contest ends June 1st 2026",
			want: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "date on following line",
			text: "Deadline\nOctober 31, 2025\nGood luck",
			want: time.Date(2025, time.October, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "numeric",
			text: "Expires 04/30/2025",
			want: time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Deadline(tt.text)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestDeadlineFuzzyFallback(t *testing.T) {
	got, ok := Deadline("Due date:\n2025-04-01")
	require.True(t, ok)
	assert.Equal(t, "2025-04-01", FormatDeadline(got))
}

func TestDeadlineRequiresKeyword(t *testing.T) {
	_, ok := Deadline("Founded March 15, 2001 in Ohio")
	assert.False(t, ok)
}

func TestDeadlineNoDate(t *testing.T) {
	_, ok := Deadline("Deadline is coming soon, 2025 is the year\nApply today")
	assert.False(t, ok)
}

func TestDeadlineRejectsImpossibleDate(t *testing.T) {
	_, ok := Deadline("Deadline: February 30, 2025 and that is final for everyone involved in the program during this admissions cycle")
	assert.False(t, ok)
}

func TestDeadlineYearlessIsNotADate(t *testing.T) {
	for _, text := range []string{
		"Deadline: March 15",
		"Due date: 3/15",
		"Deadline: 3.5 hours left",
		"Deadline is 1/2",
	} {
		t.Run(text, func(t *testing.T) {
			got, ok := Deadline(text)
			assert.False(t, ok, "got %s", FormatDeadline(got))
		})
	}
}

func TestDeadlineImplausibleYear(t *testing.T) {
	_, ok := Deadline("Deadline: March 15, 0001")
	assert.False(t, ok)

	_, ok = Deadline("Due date: 1.2.3")
	assert.False(t, ok)
}

func TestDeadlineKeywordIsWordBounded(t *testing.T) {
	// "weekends" contains "ends" but is not a deadline keyword
	_, ok := Deadline("Open weekends from March 1, 2025")
	assert.False(t, ok)
}

func TestFields(t *testing.T) {
	f := New(DefaultConfig()).Fields("Win $3,000!\nDeadline: May 5, 2025")
	require.NotNil(t, f.Amount)
	require.NotNil(t, f.Deadline)
	assert.Equal(t, "$3,000", *f.Amount)
	assert.Equal(t, "2025-05-05", FormatDeadline(*f.Deadline))

	empty := New(DefaultConfig()).Fields("nothing here")
	assert.Nil(t, empty.Amount)
	assert.Nil(t, empty.Deadline)
}
