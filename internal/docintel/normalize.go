package docintel

import (
	"fmt"
	"strings"

	"docintel/internal/logger"
)

// Element type tags used in the flattened bounding box list.
const (
	ElementParagraph = "paragraph"
	ElementTable     = "table"
	ElementFormula   = "formula"
)

// Normalize maps a service analysis payload into the normalized result
// contract. It is a pure, deterministic transformation with no network calls.
//
// Transformation failures never propagate: any panic while mapping is
// downgraded to a degraded result carrying the error message and whatever raw
// content was available, so a completed upstream analysis is never lost to a
// mapping bug. Validation and network errors stay fail-hard upstream of this.
func Normalize(raw *AnalyzeResult, meta FileMetadata) (result *NormalizedResult) {
	log := logger.WithComponent("normalize")

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("file", meta.FileName).
				Interface("panic", r).
				Msg("Transformation failed, returning degraded result")

			degraded := EmptyResult()
			degraded.Error = fmt.Sprintf("transformation failed: %v", r)
			if raw != nil {
				degraded.RawContent = raw.Content
			}
			degraded.DocumentMetadata = DocumentMetadata{
				FileName:      meta.FileName,
				FileSizeBytes: meta.FileSizeBytes,
			}
			result = degraded
		}
	}()

	result = EmptyResult()

	for _, p := range raw.Paragraphs {
		result.Paragraphs = append(result.Paragraphs, Paragraph{
			Content:         p.Content,
			Role:            p.Role,
			Confidence:      p.Confidence,
			BoundingRegions: convertRegions(p.BoundingRegions),
		})
	}
	result.Headers = GroupHeaders(result.Paragraphs)

	for _, f := range raw.Formulas {
		result.Formulas = append(result.Formulas, Formula{
			Content:         f.Value,
			Confidence:      f.Confidence,
			Kind:            f.Kind,
			BoundingRegions: convertRegions(f.BoundingRegions),
		})
	}

	for _, t := range raw.Tables {
		table := Table{
			RowCount:        t.RowCount,
			ColumnCount:     t.ColumnCount,
			Confidence:      t.Confidence,
			BoundingRegions: convertRegions(t.BoundingRegions),
			Cells:           []TableCell{},
		}
		for _, cell := range t.Cells {
			table.Cells = append(table.Cells, TableCell{
				Content:     cell.Content,
				RowIndex:    cell.RowIndex,
				ColumnIndex: cell.ColumnIndex,
				RowSpan:     spanOrDefault(cell.RowSpan),
				ColumnSpan:  spanOrDefault(cell.ColumnSpan),
				Confidence:  cell.Confidence,
				Kind:        cell.Kind,
			})
		}
		result.Tables = append(result.Tables, table)
	}

	for _, kv := range raw.KeyValuePairs {
		pair := KeyValuePair{Confidence: kv.Confidence}
		if kv.Key != nil {
			pair.Key = &kv.Key.Content
		}
		if kv.Value != nil {
			pair.Value = &kv.Value.Content
		}
		result.KeyValuePairs = append(result.KeyValuePairs, pair)
	}

	result.BoundingBoxes = CollectBoundingBoxes(result)

	for _, page := range raw.Pages {
		result.Pages = append(result.Pages, Page{
			PageNumber: page.PageNumber,
			Width:      page.Width,
			Height:     page.Height,
			Unit:       page.Unit,
			Angle:      page.Angle,
			LinesCount: len(page.Lines),
			WordsCount: len(page.Words),
		})
	}

	result.DocumentMetadata = DocumentMetadata{
		ModelID:       raw.ModelID,
		TotalPages:    len(raw.Pages),
		FileName:      meta.FileName,
		FileSizeBytes: meta.FileSizeBytes,
		ContentLength: len(raw.Content),
	}

	result.ConfidenceScores = AggregateConfidence(result)

	log.Info().
		Str("file", meta.FileName).
		Int("paragraphs", len(result.Paragraphs)).
		Int("formulas", len(result.Formulas)).
		Int("tables", len(result.Tables)).
		Msg("Normalization completed")

	return result
}

// GroupHeaders derives the headers mapping from paragraphs whose role marks
// them as a title or heading. Grouping preserves original paragraph order
// within each level.
func GroupHeaders(paragraphs []Paragraph) map[string][]Header {
	headers := map[string][]Header{}
	for _, p := range paragraphs {
		if p.Role == nil {
			continue
		}
		level, ok := headerLevel(*p.Role)
		if !ok {
			continue
		}
		headers[level] = append(headers[level], Header{
			Content:         p.Content,
			Confidence:      p.Confidence,
			BoundingRegions: p.BoundingRegions,
		})
	}
	return headers
}

// headerLevel classifies a paragraph role into a header level tag. Roles that
// mention neither "title" nor "heading" are not headers. Levels are resolved
// by scanning for the literal substrings h1..h6 in ascending order; h1 is the
// default when no level is embedded in the role.
func headerLevel(role string) (string, bool) {
	lower := strings.ToLower(role)
	if !strings.Contains(lower, "title") && !strings.Contains(lower, "heading") {
		return "", false
	}
	for i := 1; i <= 6; i++ {
		tag := fmt.Sprintf("h%d", i)
		if strings.Contains(lower, tag) {
			return tag, true
		}
	}
	return "h1", true
}

// CollectBoundingBoxes flattens every bounding region attached to a
// paragraph, table or formula into one list, tagged with the owning element.
// Tables contribute their table-level regions only, never per-cell ones.
// Regions without a polygon are skipped.
func CollectBoundingBoxes(result *NormalizedResult) []BoundingBox {
	boxes := []BoundingBox{}

	appendBoxes := func(regions []BoundingRegion, content, elementType string, confidence *float64) {
		for _, region := range regions {
			if len(region.Polygon) == 0 {
				continue
			}
			boxes = append(boxes, BoundingBox{
				PageNumber:  region.PageNumber,
				Polygon:     region.Polygon,
				Content:     content,
				ElementType: elementType,
				Confidence:  confidence,
			})
		}
	}

	for _, p := range result.Paragraphs {
		appendBoxes(p.BoundingRegions, p.Content, ElementParagraph, p.Confidence)
	}
	for _, t := range result.Tables {
		appendBoxes(t.BoundingRegions, "", ElementTable, t.Confidence)
	}
	for _, f := range result.Formulas {
		appendBoxes(f.BoundingRegions, f.Content, ElementFormula, f.Confidence)
	}

	return boxes
}

// AggregateConfidence computes the derived confidence record from all
// non-null per-element confidences. Averages are per element kind; min and
// max range over the combined pool. Empty pools yield null fields.
func AggregateConfidence(result *NormalizedResult) ConfidenceScores {
	var paragraphPool, tablePool, formulaPool []float64

	for _, p := range result.Paragraphs {
		if p.Confidence != nil {
			paragraphPool = append(paragraphPool, *p.Confidence)
		}
	}
	for _, t := range result.Tables {
		if t.Confidence != nil {
			tablePool = append(tablePool, *t.Confidence)
		}
	}
	for _, f := range result.Formulas {
		if f.Confidence != nil {
			formulaPool = append(formulaPool, *f.Confidence)
		}
	}

	combined := append(append(append([]float64{}, paragraphPool...), tablePool...), formulaPool...)

	scores := ConfidenceScores{
		AverageParagraphConfidence: mean(paragraphPool),
		AverageTableConfidence:     mean(tablePool),
		AverageFormulaConfidence:   mean(formulaPool),
	}
	if len(combined) > 0 {
		minVal, maxVal := combined[0], combined[0]
		for _, v := range combined[1:] {
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
		scores.MinConfidence = &minVal
		scores.MaxConfidence = &maxVal
	}

	return scores
}

func mean(pool []float64) *float64 {
	if len(pool) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range pool {
		sum += v
	}
	avg := sum / float64(len(pool))
	return &avg
}

// convertRegions turns the service's flat x,y polygon lists into ordered
// point pairs. A trailing odd coordinate is dropped.
func convertRegions(regions []RawBoundingRegion) []BoundingRegion {
	converted := []BoundingRegion{}
	for _, region := range regions {
		points := []Point{}
		for i := 0; i+1 < len(region.Polygon); i += 2 {
			points = append(points, Point{region.Polygon[i], region.Polygon[i+1]})
		}
		converted = append(converted, BoundingRegion{
			PageNumber: region.PageNumber,
			Polygon:    points,
		})
	}
	return converted
}

func spanOrDefault(span *int) int {
	if span == nil || *span < 1 {
		return 1
	}
	return *span
}
