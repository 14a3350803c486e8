package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/page"
)

func testQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{ID: fmt.Sprint(i + 1), Subject: "c", Text: fmt.Sprintf("question %d", i+1), Level: model.LevelEasy, Marks: 1}
	}
	return qs
}

func TestPager(t *testing.T) {
	if err := i18n.Init("en"); err != nil {
		t.Fatal(err)
	}
	sizing := page.DefaultSizing()

	tests := []struct {
		name      string
		input     string
		wantIndex int
		wantSize  int
		wantOut   []string
	}{
		{"next stops on last page", "n\nn\nn\nq\n", 2, 10, []string{"Page 3 of 3 (25 questions)", " 21. [21]"}},
		{"resize keeps page", "n\nn\nw 800\nq\n", 2, 8, []string{"Page 3 of 4 (25 questions)", " 17. [17]"}},
		{"prev after resize", "n\nw 800\np\np\nq\n", 0, 8, []string{"Page 1 of 4 (25 questions)"}},
		{"bad width", "w wide\nq\n", 0, 10, []string{"usage: w <width in pixels>"}},
		{"end of input", "n\n", 1, 10, []string{"Page 2 of 3 (25 questions)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := testQuestions(25)
			pg := &pager{questions: qs, page: page.New(len(qs), sizing.For(0), 0), sizeFor: sizing.For}
			var out bytes.Buffer
			if err := pg.run(context.Background(), strings.NewReader(tt.input), &out); err != nil {
				t.Fatalf("run: %v", err)
			}
			if pg.page.Index != tt.wantIndex || pg.page.Size != tt.wantSize {
				t.Errorf("page = index %d size %d, want %d and %d", pg.page.Index, pg.page.Size, tt.wantIndex, tt.wantSize)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output lacks %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestPrintQuestionMarksAnswer(t *testing.T) {
	q := &model.Question{Text: "2+2?", Option1: "3", Option2: "4", Option3: "5", Option4: "6", CorrectAnswer: "4"}
	var out bytes.Buffer
	printQuestion(&out, q)
	if !strings.Contains(out.String(), " * 2) 4") || strings.Contains(out.String(), " * 1)") {
		t.Errorf("answer not marked:\n%s", out.String())
	}
}

func TestApplyQuestionFlagsLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    model.Level
		wantErr bool
	}{
		{"Hard", model.LevelHard, false},
		{" medium ", model.LevelMedium, false},
		{"extreme", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cmd := &cobra.Command{}
			questionFlags(cmd)
			if err := cmd.Flags().Set("level", tt.level); err != nil {
				t.Fatal(err)
			}
			q := model.Question{Level: model.LevelEasy}
			err := applyQuestionFlags(cmd, &q, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyQuestionFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && q.Level != tt.want {
				t.Errorf("Level = %q, want %q", q.Level, tt.want)
			}
		})
	}
}
