package ocr

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var reWordConf = regexp.MustCompile(`x_wconf\s+(\d+(?:\.\d+)?)`)

const lineSelector = ".ocr_line, .ocr_header, .ocr_caption, .ocr_textfloat"

type PageText struct {
	Lines      []string
	Words      int
	Confidence float64 // mean word confidence, 0..1
}

func (p PageText) Text() string {
	return strings.Join(p.Lines, "\n")
}

// ParseHOCR reads tesseract hOCR output into text lines.
func ParseHOCR(doc []byte) (PageText, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return PageText{}, err
	}

	var page PageText
	var confSum float64
	var confCount int
	root.Find(lineSelector).Each(func(_ int, line *goquery.Selection) {
		words := make([]string, 0, 8)
		line.Find(".ocrx_word").Each(func(_ int, word *goquery.Selection) {
			text := strings.TrimSpace(word.Text())
			if text == "" {
				return
			}
			words = append(words, text)
			if m := reWordConf.FindStringSubmatch(word.AttrOr("title", "")); len(m) == 2 {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					confSum += v
					confCount++
				}
			}
		})
		if len(words) == 0 {
			return
		}
		page.Words += len(words)
		page.Lines = append(page.Lines, strings.Join(words, " "))
	})

	if confCount > 0 {
		page.Confidence = confSum / float64(confCount) / 100
	}
	return page, nil
}
