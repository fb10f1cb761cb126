package service

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

// GradeReport summarizes one exam result for the student who sat it
type GradeReport struct {
	ResultID     string
	StudentName  string
	StudentEmail string
	ExamTitle    string
	Score        float64
	TotalMarks   float64
	Percentage   float64
	Reviewed     bool
	GeneratedAt  time.Time
}

// Filename is the download name of the rendered report
func (r *GradeReport) Filename() string {
	return fmt.Sprintf("grade-report-%s.html", r.ResultID)
}

var reportHTML = htmltemplate.Must(htmltemplate.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Grade Report</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1>Grade Report</h1>
		<table style="border-collapse: collapse; width: 100%;">
			<tr><th style="text-align: left; background: #eee; padding: 8px;">Student Name</th><td style="padding: 8px;">{{.StudentName}}</td></tr>
			<tr><th style="text-align: left; background: #eee; padding: 8px;">Exam Title</th><td style="padding: 8px;">{{.ExamTitle}}</td></tr>
			<tr><th style="text-align: left; background: #eee; padding: 8px;">Score</th><td style="padding: 8px;">{{printf "%g" .Score}} / {{printf "%g" .TotalMarks}}</td></tr>
			<tr><th style="text-align: left; background: #eee; padding: 8px;">Percentage</th><td style="padding: 8px;">{{printf "%.1f" .Percentage}}%</td></tr>
		</table>
		{{if not .Reviewed}}<p><em>This result has not been reviewed yet.</em></p>{{end}}
		<p style="font-size: 12px; color: #666;">Generated on: {{.GeneratedAt.Format "2006-01-02 15:04"}}</p>
	</div>
</body>
</html>
`))

var reportText = texttemplate.Must(texttemplate.New("report").Parse(`GRADE REPORT

Student Name: {{.StudentName}}
Exam Title:   {{.ExamTitle}}
Score:        {{printf "%g" .Score}} / {{printf "%g" .TotalMarks}}
Percentage:   {{printf "%.1f" .Percentage}}%

Generated on: {{.GeneratedAt.Format "2006-01-02 15:04"}}
`))

// Render returns the HTML and plain text forms of the report
func (r *GradeReport) Render() (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := reportHTML.Execute(&htmlBuf, r); err != nil {
		return "", "", fmt.Errorf("failed to render grade report: %w", err)
	}
	if err := reportText.Execute(&textBuf, r); err != nil {
		return "", "", fmt.Errorf("failed to render grade report: %w", err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}
