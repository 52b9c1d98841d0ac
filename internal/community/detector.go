package community

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stancegraph/internal/alliance"
	"stancegraph/internal/graph"
	apperrors "stancegraph/pkg/errors"
	"stancegraph/pkg/logger"
)

// Singleton policies for users the clustering cannot place: either every
// unplaced user becomes a one-member community, or unplaced users are treated
// as noise and left out of the partition.
const (
	PolicySingleton = "singleton"
	PolicyNoise     = "noise"
)

// projectionName builds a run-scoped GDS graph name so overlapping or crashed
// runs never collide on a projection.
func projectionName() string {
	return "alliance-" + uuid.New().String()
}

// Store is the slice of the graph store the detector needs
type Store interface {
	DetectCommunities(ctx context.Context, graphName string, edges []graph.AllianceEdge, gamma float64, seed int) (map[string]int64, error)
	ReplaceCommunities(ctx context.Context, memberships []graph.Membership) error
}

// Detector partitions the alliance graph into ideological communities. The
// clustering itself runs inside the store; the detector owns the edge-case
// handling around it and the stable naming of the result.
type Detector struct {
	store           Store
	gamma           float64
	seed            int
	singletonPolicy string
	logger          *zap.Logger
}

// NewDetector creates a community detector
func NewDetector(store Store, gamma float64, seed int, singletonPolicy string) *Detector {
	if singletonPolicy != PolicyNoise {
		singletonPolicy = PolicySingleton
	}
	return &Detector{
		store:           store,
		gamma:           gamma,
		seed:            seed,
		singletonPolicy: singletonPolicy,
		logger:          logger.Named("community"),
	}
}

// Detect partitions the users of the alliance graph. A graph with edges is
// handed to the store's clustering; users carrying qualifying stances but no
// alliance edge fall under the singleton policy. A graph with no edges at all
// never reaches the clustering.
func (d *Detector) Detect(ctx context.Context, g *alliance.Graph) ([]graph.Membership, error) {
	if g == nil || len(g.Users) == 0 {
		d.logger.Info("No users to partition")
		return nil, nil
	}

	if len(g.Edges) == 0 {
		d.logger.Warn("Alliance graph has no edges, applying singleton policy",
			zap.Int("users", len(g.Users)),
			zap.String("policy", d.singletonPolicy),
		)
		if d.singletonPolicy == PolicyNoise {
			return nil, apperrors.NewEmptyGraph(len(g.Users))
		}
		return Canonicalize(singletonAssignment(g.Users)), nil
	}

	assignment, err := d.store.DetectCommunities(ctx, projectionName(), g.Edges, d.gamma, d.seed)
	if err != nil {
		return nil, fmt.Errorf("community detection failed: %w", err)
	}

	// Users with qualifying stances but no edge never enter the projection
	leftover := nextFreeID(assignment)
	for _, u := range g.Users {
		if _, ok := assignment[u]; ok {
			continue
		}
		if d.singletonPolicy == PolicyNoise {
			continue
		}
		assignment[u] = leftover
		leftover++
	}

	memberships := Canonicalize(assignment)
	d.logger.Info("Partitioned users into communities",
		zap.Int("users", len(assignment)),
		zap.Int("communities", len(memberships)),
		zap.Float64("gamma", d.gamma),
	)
	return memberships, nil
}

// Persist atomically replaces the stored partition with the given one
func (d *Detector) Persist(ctx context.Context, memberships []graph.Membership) error {
	if err := d.store.ReplaceCommunities(ctx, memberships); err != nil {
		return fmt.Errorf("failed to persist communities: %w", err)
	}
	return nil
}

// Run detects and persists in one step. A recompute always replaces the
// stored partition, so a graph the noise policy leaves empty still wipes
// whatever the previous run persisted.
func (d *Detector) Run(ctx context.Context, g *alliance.Graph) ([]graph.Membership, error) {
	memberships, err := d.Detect(ctx, g)
	if err != nil {
		var empty *apperrors.ErrEmptyGraph
		if errors.As(err, &empty) {
			if perr := d.Persist(ctx, nil); perr != nil {
				return nil, perr
			}
			return nil, nil
		}
		return nil, err
	}
	if err := d.Persist(ctx, memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// Canonicalize turns a raw user->cluster assignment into named memberships.
// Raw cluster ids from the clustering are unstable across runs, so communities
// are renumbered by the lexicographically smallest member: the community whose
// smallest member sorts first becomes community-0, and so on. Members are
// sorted within each community.
func Canonicalize(assignment map[string]int64) []graph.Membership {
	if len(assignment) == 0 {
		return nil
	}

	clusters := make(map[int64][]string)
	for user, id := range assignment {
		clusters[id] = append(clusters[id], user)
	}

	memberships := make([]graph.Membership, 0, len(clusters))
	for _, members := range clusters {
		sort.Strings(members)
		memberships = append(memberships, graph.Membership{Members: members})
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].Members[0] < memberships[j].Members[0]
	})
	for i := range memberships {
		memberships[i].ID = fmt.Sprintf("community-%d", i)
	}
	return memberships
}

func singletonAssignment(users []string) map[string]int64 {
	assignment := make(map[string]int64, len(users))
	for i, u := range users {
		assignment[u] = int64(i)
	}
	return assignment
}

func nextFreeID(assignment map[string]int64) int64 {
	var max int64 = -1
	for _, id := range assignment {
		if id > max {
			max = id
		}
	}
	return max + 1
}
