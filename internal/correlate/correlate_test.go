package correlate

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/redactify/redactify/internal/models"
)

func raw(category, text string) models.RawDetection {
	return models.RawDetection{Category: category, Text: text, Start: -1, End: -1, BlockIndex: -1}
}

func TestScenarioPersonAndPhone(t *testing.T) {
	blocks := []models.TextBlock{
		{Text: "John Smith", Box: models.BBox{0, 0, 100, 20}},
		{Text: "called 555-1234", Box: models.BBox{0, 20, 150, 40}},
	}

	person, ok := Locate(raw(models.CategoryPerson, "John Smith"), blocks)
	if !ok {
		t.Fatal("PERSON did not resolve")
	}
	if person.BBox != (models.BBox{0, 0, 100, 20}) {
		t.Errorf("PERSON bbox = %v, want [0,0,100,20]", person.BBox)
	}
	if person.Method != models.MethodSingleBlock {
		t.Errorf("PERSON method = %s", person.Method)
	}

	phone, ok := Locate(raw(models.CategoryPhone, "555-1234"), blocks)
	if !ok {
		t.Fatal("PHONE did not resolve")
	}
	if phone.BlockIndex != 1 {
		t.Errorf("PHONE block = %d, want 1", phone.BlockIndex)
	}
	if phone.BBox[0] <= 0 {
		t.Errorf("PHONE x1 = %d, want > 0 (starts mid-string after %q)", phone.BBox[0], "called ")
	}
	if phone.BBox[1] != 20 || phone.BBox[3] != 40 {
		t.Errorf("PHONE y-extent = [%d,%d], want [20,40]", phone.BBox[1], phone.BBox[3])
	}
	if phone.BBox[2] > 150 {
		t.Errorf("PHONE x2 = %d, exceeds block width", phone.BBox[2])
	}
}

// For offset-resolved detections, the x-interval must be a subset of the
// block's x-interval and the y-interval must match it exactly.
func TestOffsetStrategyStaysInsideBlock(t *testing.T) {
	block := models.TextBlock{Text: "Patient is 45 years old", Box: models.BBox{10, 100, 310, 130}}
	cases := []struct {
		name       string
		start, end int
	}{
		{"prefix", 0, 7},
		{"middle", 11, 22},
		{"full", 0, 23},
		{"end clamped", 11, 99},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			det := models.RawDetection{
				Category:   models.CategoryAge,
				Text:       "45 years old",
				Start:      tc.start,
				End:        tc.end,
				BlockIndex: 0,
			}
			rec, ok := Locate(det, []models.TextBlock{block})
			if !ok {
				t.Fatal("did not resolve")
			}
			if rec.BBox[0] < block.Box[0] || rec.BBox[2] > block.Box[2] {
				t.Errorf("x-interval [%d,%d] escapes block [%d,%d]", rec.BBox[0], rec.BBox[2], block.Box[0], block.Box[2])
			}
			if rec.BBox[1] != block.Box[1] || rec.BBox[3] != block.Box[3] {
				t.Errorf("y-interval [%d,%d] != block [%d,%d]", rec.BBox[1], rec.BBox[3], block.Box[1], block.Box[3])
			}
		})
	}
}

func TestBlockIndexWithoutOffsetsIsDirect(t *testing.T) {
	blocks := []models.TextBlock{{Text: "jane@example.com", Box: models.BBox{5, 5, 205, 25}}}
	det := models.RawDetection{
		Category: models.CategoryEmail, Text: "jane@example.com",
		Start: -1, End: -1, BlockIndex: 0,
	}
	rec, ok := Locate(det, blocks)
	if !ok {
		t.Fatal("did not resolve")
	}
	if rec.Method != models.MethodDirect {
		t.Errorf("method = %s, want %s", rec.Method, models.MethodDirect)
	}
	if rec.BBox != blocks[0].Box {
		t.Errorf("bbox = %v, want block box verbatim", rec.BBox)
	}
}

// A span crossing a line break resolves to the exact minimal rectangle
// covering every contributing block's box.
func TestMultiBlockUnion(t *testing.T) {
	blocks := []models.TextBlock{
		{Text: "ship to 123 Main", Box: models.BBox{40, 0, 200, 20}},
		{Text: "Street Springfield", Box: models.BBox{10, 22, 180, 44}},
		{Text: "unrelated", Box: models.BBox{0, 50, 500, 70}},
	}
	rec, ok := Locate(raw(models.CategoryAddress, "123 Main Street Springfield"), blocks)
	if !ok {
		t.Fatal("did not resolve")
	}
	want := models.BBox{10, 0, 200, 44}
	if rec.BBox != want {
		t.Errorf("union = %v, want %v (minimal cover of blocks 0 and 1)", rec.BBox, want)
	}
	if !rec.SpansMultiple || rec.NumBlocks != 2 {
		t.Errorf("spansMultiple=%v numBlocks=%d, want true/2", rec.SpansMultiple, rec.NumBlocks)
	}
	if rec.Method != models.MethodMultiBlock {
		t.Errorf("method = %s, want %s", rec.Method, models.MethodMultiBlock)
	}
	if rec.BlockIndex != 0 {
		t.Errorf("blockIndex = %d, want first contributing block", rec.BlockIndex)
	}
}

func TestUnlocatableDetectionDropsQuietly(t *testing.T) {
	blocks := []models.TextBlock{{Text: "nothing sensitive here", Box: models.BBox{0, 0, 100, 10}}}
	if _, ok := Locate(raw(models.CategorySSN, "123-45-6789"), blocks); ok {
		t.Error("hallucinated detection must not resolve")
	}
	if _, ok := Locate(raw(models.CategorySSN, ""), blocks); ok {
		t.Error("empty detection text must not resolve")
	}
	if _, ok := Locate(raw(models.CategorySSN, "x"), nil); ok {
		t.Error("no blocks must not resolve")
	}
}

// Repeated substrings resolve to the first occurrence only.
func TestFirstMatchPolicy(t *testing.T) {
	blocks := []models.TextBlock{
		{Text: "call 555-1234 now", Box: models.BBox{0, 0, 170, 20}},
		{Text: "or 555-1234 later", Box: models.BBox{0, 30, 170, 50}},
	}
	rec, ok := Locate(raw(models.CategoryPhone, "555-1234"), blocks)
	if !ok {
		t.Fatal("did not resolve")
	}
	if rec.BlockIndex != 0 {
		t.Errorf("blockIndex = %d, want 0 (first occurrence)", rec.BlockIndex)
	}
	if rec.BBox[1] != 0 || rec.BBox[3] != 20 {
		t.Errorf("y-extent = [%d,%d], want first block's", rec.BBox[1], rec.BBox[3])
	}
}

// Re-running correlation on identical inputs yields byte-identical plans.
func TestIdempotence(t *testing.T) {
	blocks := []models.TextBlock{
		{Text: "John Smith", Box: models.BBox{0, 0, 100, 20}},
		{Text: "called 555-1234", Box: models.BBox{0, 20, 150, 40}},
	}
	dets := []models.RawDetection{
		raw(models.CategoryPerson, "John Smith"),
		raw(models.CategoryPhone, "555-1234"),
		raw(models.CategorySSN, "not present"),
	}
	run := func() []byte {
		var records []models.DetectionRecord
		for _, det := range dets {
			if rec, ok := Locate(det, blocks); ok {
				records = append(records, rec)
			}
		}
		data, err := json.Marshal(records)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return data
	}
	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("plans differ between runs:\n%s\n%s", first, second)
	}
}

func TestWhitespaceBlocksDiscardedBeforeCorrelation(t *testing.T) {
	res := models.OCRResult{
		RecTexts: []string{"John Smith", "   ", "called 555-1234"},
		RecBoxes: []models.BBox{{0, 0, 100, 20}, {0, 10, 1, 11}, {0, 20, 150, 40}},
	}
	blocks := res.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2 after trimming", len(blocks))
	}
	// Trimming is pairwise, so the phone block kept its own box.
	rec, ok := Locate(raw(models.CategoryPhone, "555-1234"), blocks)
	if !ok {
		t.Fatal("did not resolve")
	}
	if rec.BBox[1] != 20 || rec.BBox[3] != 40 {
		t.Errorf("y-extent = [%d,%d], want [20,40]", rec.BBox[1], rec.BBox[3])
	}
}
