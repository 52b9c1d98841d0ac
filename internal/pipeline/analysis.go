package pipeline

import (
	"context"

	"stancegraph/internal/alliance"
	"stancegraph/internal/graph"
	"stancegraph/internal/resolver"
	"stancegraph/internal/summarizer"
	apperrors "stancegraph/pkg/errors"
)

// Counts is the slice of the graph store the stage checks need
type Counts interface {
	CountEntities(ctx context.Context) (int64, error)
	CountQualifyingStances(ctx context.Context) (int64, error)
}

// EntityResolver resolves duplicate entities
type EntityResolver interface {
	Resolve(ctx context.Context) (*resolver.Report, error)
}

// AllianceBuilder projects the alliance graph
type AllianceBuilder interface {
	Build(ctx context.Context) (*alliance.Graph, error)
}

// CommunityDetector partitions and persists communities
type CommunityDetector interface {
	Run(ctx context.Context, g *alliance.Graph) ([]graph.Membership, error)
}

// CommunitySummarizer summarizes the given communities
type CommunitySummarizer interface {
	Run(ctx context.Context, communityIDs []string) (*summarizer.Report, error)
}

// runState carries intermediate results between analysis stages of one run
type runState struct {
	allianceGraph *alliance.Graph
	memberships   []graph.Membership
}

// NewAnalysis wires the standard four-stage analysis run: entity resolution,
// alliance projection, community detection, community summarization.
func NewAnalysis(counts Counts, res EntityResolver, builder AllianceBuilder, detector CommunityDetector, summ CommunitySummarizer) *Pipeline {
	state := &runState{}
	return New(
		&resolveStage{counts: counts, resolver: res},
		&allianceStage{counts: counts, builder: builder, state: state},
		&detectStage{detector: detector, state: state},
		&summarizeStage{summarizer: summ, state: state},
	)
}

type resolveStage struct {
	counts   Counts
	resolver EntityResolver
}

func (s *resolveStage) Name() string { return "entity-resolution" }

func (s *resolveStage) Check(ctx context.Context) error {
	n, err := s.counts.CountEntities(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewStagePrecondition(s.Name(), "graph holds no entities")
	}
	return nil
}

func (s *resolveStage) Run(ctx context.Context) error {
	_, err := s.resolver.Resolve(ctx)
	return err
}

type allianceStage struct {
	counts  Counts
	builder AllianceBuilder
	state   *runState
}

func (s *allianceStage) Name() string { return "alliance-projection" }

func (s *allianceStage) Check(ctx context.Context) error {
	n, err := s.counts.CountQualifyingStances(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewStagePrecondition(s.Name(), "no stance assertions meet the confidence threshold")
	}
	return nil
}

func (s *allianceStage) Run(ctx context.Context) error {
	g, err := s.builder.Build(ctx)
	if err != nil {
		return err
	}
	s.state.allianceGraph = g
	return nil
}

type detectStage struct {
	detector CommunityDetector
	state    *runState
}

func (s *detectStage) Name() string { return "community-detection" }

func (s *detectStage) Check(ctx context.Context) error {
	if s.state.allianceGraph == nil {
		return apperrors.NewStagePrecondition(s.Name(), "alliance graph has not been projected")
	}
	return nil
}

func (s *detectStage) Run(ctx context.Context) error {
	memberships, err := s.detector.Run(ctx, s.state.allianceGraph)
	if err != nil {
		return err
	}
	s.state.memberships = memberships
	return nil
}

type summarizeStage struct {
	summarizer CommunitySummarizer
	state      *runState
}

func (s *summarizeStage) Name() string { return "community-summarization" }

func (s *summarizeStage) Check(ctx context.Context) error {
	// An empty partition (noise policy, no alliances) is a valid no-op
	return nil
}

func (s *summarizeStage) Run(ctx context.Context) error {
	ids := make([]string, 0, len(s.state.memberships))
	for _, m := range s.state.memberships {
		ids = append(ids, m.ID)
	}
	_, err := s.summarizer.Run(ctx, ids)
	return err
}
