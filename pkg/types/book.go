package types

import "time"

// SectionType classifies a detected book section.
type SectionType string

const (
	SectionChapter     SectionType = "chapter"
	SectionPart        SectionType = "part"
	SectionFrontMatter SectionType = "front_matter"
	SectionBackMatter  SectionType = "back_matter"

	// SectionUnknown marks a large heading that could not be classified.
	// It is normalized to SectionChapter during label assignment and never
	// appears in analyzer output.
	SectionUnknown SectionType = "unknown"
)

// Chapter is a single detected section of a book, as produced by the
// chapter analyzer. Page numbers are 1-based inclusive and zero for
// formats without pages (EPUB).
type Chapter struct {
	Index         int         `json:"index"`
	SectionType   SectionType `json:"section_type"`
	ChapterNumber int         `json:"chapter_number,omitempty"` // 0 = unnumbered
	Title         string      `json:"title"`
	ChapterLabel  string      `json:"chapter_label"`
	PageStart     int         `json:"page_start,omitempty"`
	PageEnd       int         `json:"page_end,omitempty"`
	WordCount     int         `json:"word_count"`

	// Text is the raw extracted text; TextClean is the narration-ready
	// form with footnote markers removed and pause sentinels inserted.
	// Neither is serialized; chapter text is cached on disk instead.
	Text      string `json:"-"`
	TextClean string `json:"-"`
}

// ChapterMeta is the persisted/displayed view of a chapter: everything a
// client needs except the text itself.
type ChapterMeta struct {
	Index            int     `json:"index"`
	Title            string  `json:"title"`
	ChapterLabel     string  `json:"chapter_label"`
	WordCount        int     `json:"word_count"`
	EstimatedMinutes float64 `json:"estimated_minutes"`
	PageStart        int     `json:"page_start,omitempty"`
	PageEnd          int     `json:"page_end,omitempty"`
	JobID            string  `json:"job_id,omitempty"`
	Status           string  `json:"status"`
}

// Manifest is the book.json file written next to the cached chapter texts.
type Manifest struct {
	Filename        string        `json:"filename"`
	DetectionMethod string        `json:"detection_method"`
	Chapters        []ChapterMeta `json:"chapters"`
}

// Book is an in-memory record of an analyzed book. Chapter texts live on
// disk under CachePrefix; the record itself is not persisted across
// restarts.
type Book struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id,omitempty"`
	Filename        string        `json:"filename"`
	UploadPath      string        `json:"upload_path"`
	CachePrefix     string        `json:"cache_prefix"`
	DetectionMethod string        `json:"detection_method"`
	Chapters        []ChapterMeta `json:"chapters"`
	Voice           string        `json:"voice"`
	Rate            string        `json:"rate"`
	CreatedAt       time.Time     `json:"created_at"`
}

// JobStatus is the lifecycle state of a conversion job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
	JobError      JobStatus = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobError
}

// Job tracks a single conversion. Progress is 0-100 and monotone
// non-decreasing while the job is processing.
type Job struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	Progress     float64   `json:"progress"`
	Message      string    `json:"message"`
	OutputFile   string    `json:"output_file,omitempty"`
	DownloadName string    `json:"download_name,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	IsPremium    bool      `json:"is_premium"`
}
