package report

import (
	"fmt"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

// ImagesPerSection is the cluster size for image pages.
const ImagesPerSection = 3

type SectionKind int

const (
	SectionTitle SectionKind = iota
	SectionImages
)

type Section struct {
	Kind     SectionKind
	Title    string
	Category domain.Category
	Images   []domain.CapturedImage
}

// Plan lays out the report: a title section, then each category's images in
// clusters of ImagesPerSection. A category with no images gets no section.
func Plan(project domain.Project) []Section {
	sections := []Section{{Kind: SectionTitle, Title: "Kiosk Installation Report"}}
	for _, cat := range domain.Categories {
		chunks := chunk(project.Images.ByCategory(cat), ImagesPerSection)
		for i, images := range chunks {
			sections = append(sections, Section{
				Kind:     SectionImages,
				Title:    sectionTitle(cat, i+1, len(chunks)),
				Category: cat,
				Images:   images,
			})
		}
	}
	return sections
}

func sectionTitle(cat domain.Category, part, parts int) string {
	switch cat {
	case domain.CategoryBefore:
		return fmt.Sprintf("Before Installation (Part %d)", part)
	case domain.CategoryAfter:
		return fmt.Sprintf("After Execution (Part %d)", part)
	default:
		if parts == 1 {
			return "Receiving / Handover Documents"
		}
		return fmt.Sprintf("Receiving / Handover Documents (Part %d)", part)
	}
}

func chunk(images []domain.CapturedImage, size int) [][]domain.CapturedImage {
	var out [][]domain.CapturedImage
	for i := 0; i < len(images); i += size {
		out = append(out, images[i:min(i+size, len(images))])
	}
	return out
}
