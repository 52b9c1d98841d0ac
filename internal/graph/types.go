package graph

// Post is a social-media post (or comment, when ParentID is set) as stored in
// the graph. Immutable after ingestion except for CommunityID, which the
// analysis pipeline rewrites on every run.
type Post struct {
	ID             string    `json:"id"`
	Author         string    `json:"author"`
	Content        string    `json:"content"`
	CleanedContent string    `json:"cleaned_content,omitempty"`
	Timestamp      int64     `json:"timestamp"`
	Score          int64     `json:"score"`
	Forum          string    `json:"forum"`
	ParentID       string    `json:"parent_id,omitempty"`
	Embedding      []float64 `json:"-"`
	CommunityID    string    `json:"community_id,omitempty"`
	Entities       []string  `json:"entities,omitempty"`
	Stance         string    `json:"stance,omitempty"`
}

// Entity is a political figure, organization or concept
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// EntityDegree pairs an entity with its incoming MENTIONS + HAS_STANCE edge count
type EntityDegree struct {
	Entity
	Degree int64 `json:"degree"`
}

// StanceTriple is one qualifying-candidate stance assertion, flattened to the
// (user, entity, stance) shape the alliance builder consumes
type StanceTriple struct {
	User       string  `json:"user"`
	EntityID   string  `json:"entity_id"`
	EntityName string  `json:"entity_name"`
	Stance     string  `json:"stance"`
	Confidence float64 `json:"confidence"`
}

// StanceCount is one row of a community's aggregate stance profile
type StanceCount struct {
	Entity string `json:"entity"`
	Stance string `json:"stance"`
	Count  int64  `json:"count"`
}

// Community is a cluster of users discovered by the analysis pipeline
type Community struct {
	ID            string        `json:"id"`
	Level         int64         `json:"level"`
	Size          int64         `json:"size"`
	Summary       string        `json:"summary,omitempty"`
	Embedding     []float64     `json:"-"`
	StanceProfile []StanceCount `json:"stance_profile,omitempty"`
}

// CommunitySummary is the retrieval-side view of a summarized community
type CommunitySummary struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// ScoredPost is a post with a retrieval score attached (cosine similarity for
// reranked/vector results)
type ScoredPost struct {
	Post
	Similarity float64 `json:"similarity"`
}

// Mention is one extracted entity mention inside a post
type Mention struct {
	EntityName string `json:"entity_name"`
	EntityType string `json:"entity_type"`
	Sentence   string `json:"sentence"`
}

// StanceAssertion is one classified stance of a post toward an entity.
// Confidence is mandatory; the loader rejects records without it.
type StanceAssertion struct {
	EntityName string  `json:"entity_name"`
	Stance     string  `json:"stance"`
	Confidence float64 `json:"confidence"`
}

// EnrichedPost is the batch-write unit produced by the ingestion enricher
type EnrichedPost struct {
	ID             string
	Author         string
	Content        string
	CleanedContent string
	Timestamp      int64
	Score          int64
	Forum          string
	ParentID       string
	Embedding      []float64
	Mentions       []Mention
	Stances        []StanceAssertion
}

// Stance labels
const (
	StanceFavorable = "FAVORABLE"
	StanceOpposed   = "OPPOSED"
	StanceNeutral   = "NEUTRAL"
)

// AllianceEdge is one undirected weighted edge of the projected alliance
// graph. U1 < U2 lexicographically.
type AllianceEdge struct {
	U1     string `json:"u1"`
	U2     string `json:"u2"`
	Weight int64  `json:"weight"`
}

// Membership maps every clustered user to a community id
type Membership struct {
	ID      string
	Members []string
}
