// Package publish turns pipeline output into a post body and writes it to
// the publishing site.
package publish

import (
	"context"
	"fmt"
	"html"
	"strings"

	"pressroom/internal/pipeline"
)

const (
	maxGalleryImages = 10
	galleryColumns   = 3
)

// ContentStage assembles the post body as block editor markup.
type ContentStage struct{}

// NewContentStage constructs the body assembly stage.
func NewContentStage() *ContentStage { return &ContentStage{} }

func (s *ContentStage) Name() string { return "content" }

func (s *ContentStage) Applies(pc *pipeline.Context) bool {
	return pc.Subject != nil && pc.Body == ""
}

func (s *ContentStage) Execute(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	pc.Body = BuildBody(pc.Subject, pc.RewrittenContent)
	return pc, nil
}

// BuildBody renders the subject as block markup. Rewritten text wins over the
// short description; paragraphs are split on blank lines.
func BuildBody(subject *pipeline.Subject, rewritten string) string {
	name := html.EscapeString(subject.Name)
	var blocks []string

	blocks = append(blocks, heading(name, 1))
	if subject.HeaderImage != "" {
		blocks = append(blocks, image(subject.HeaderImage, name, "header-image"))
	}

	var info []string
	if len(subject.Developers) > 0 {
		info = append(info, "<strong>Developer:</strong> "+html.EscapeString(strings.Join(subject.Developers, ", ")))
	}
	if len(subject.Publishers) > 0 {
		info = append(info, "<strong>Publisher:</strong> "+html.EscapeString(strings.Join(subject.Publishers, ", ")))
	}
	if subject.ReleaseDate != "" {
		info = append(info, "<strong>Release date:</strong> "+html.EscapeString(subject.ReleaseDate))
	}
	if len(info) > 0 {
		blocks = append(blocks, paragraph(strings.Join(info, " | ")))
	}

	blocks = append(blocks, heading("About", 2))
	text := rewritten
	if strings.TrimSpace(text) == "" {
		text = subject.ShortDescription
	}
	for _, para := range strings.Split(text, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			blocks = append(blocks, paragraph(html.EscapeString(para)))
		}
	}

	var shots []string
	for _, url := range subject.Screenshots {
		if len(shots) == maxGalleryImages {
			break
		}
		if url != "" {
			shots = append(shots, image(url, name+" screenshot", ""))
		}
	}
	if len(shots) > 0 {
		blocks = append(blocks, heading("Screenshots", 2), gallery(shots))
	}
	return strings.Join(blocks, "\n\n")
}

func heading(text string, level int) string {
	return fmt.Sprintf("<!-- wp:heading {\"level\":%d} -->\n<h%d class=\"wp-block-heading\">%s</h%d>\n<!-- /wp:heading -->",
		level, level, text, level)
}

func paragraph(text string) string {
	return "<!-- wp:paragraph -->\n<p>" + text + "</p>\n<!-- /wp:paragraph -->"
}

func image(url, alt, class string) string {
	attrs := `{"sizeSlug":"large"}`
	figureClass := "wp-block-image size-large"
	if class != "" {
		attrs = fmt.Sprintf(`{"sizeSlug":"large","className":%q}`, class)
		figureClass += " " + class
	}
	return fmt.Sprintf("<!-- wp:image %s -->\n<figure class=\"%s\"><img src=\"%s\" alt=\"%s\"/></figure>\n<!-- /wp:image -->",
		attrs, figureClass, html.EscapeString(url), alt)
}

func gallery(images []string) string {
	return fmt.Sprintf("<!-- wp:gallery {\"columns\":%d,\"linkTo\":\"file\"} -->\n<figure class=\"wp-block-gallery has-nested-images columns-%d is-cropped\">\n%s\n</figure>\n<!-- /wp:gallery -->",
		galleryColumns, galleryColumns, strings.Join(images, "\n"))
}
