package models

// Limit is a plan quota. Unbounded means no cap; any other non-negative
// value is a hard ceiling. Kept as a tagged sentinel instead of a float
// infinity so comparisons and JSON stay well-defined.
type Limit int64

// Unbounded marks a limit with no cap.
const Unbounded Limit = -1

// IsUnbounded returns true when the limit has no cap.
func (l Limit) IsUnbounded() bool {
	return l == Unbounded
}

// Allows reports whether one more unit fits under the limit.
func (l Limit) Allows(current int64) bool {
	return l.IsUnbounded() || current < int64(l)
}

// Remaining returns the headroom under the limit, or Unbounded.
func (l Limit) Remaining(current int64) Limit {
	if l.IsUnbounded() {
		return Unbounded
	}
	rem := int64(l) - current
	if rem < 0 {
		rem = 0
	}
	return Limit(rem)
}

// LimitName identifies a plan quota field.
type LimitName string

const (
	LimitToolsPerDay           LimitName = "tools_per_day"
	LimitAIGenerationsPerMonth LimitName = "ai_generations_per_month"
	LimitVideosPerMonth        LimitName = "videos_per_month"
	LimitEbooksPerMonth        LimitName = "ebooks_per_month"
	LimitMaxVideoSeconds       LimitName = "max_video_seconds"
	LimitMaxEbookPages         LimitName = "max_ebook_pages"
	LimitStorageGB             LimitName = "storage_gb"
	LimitTeamMembers           LimitName = "team_members"
)

// PlanLimits holds the quota table of a plan.
type PlanLimits struct {
	ToolsPerDay           Limit `json:"tools_per_day"`
	AIGenerationsPerMonth Limit `json:"ai_generations_per_month"`
	VideosPerMonth        Limit `json:"videos_per_month"`
	EbooksPerMonth        Limit `json:"ebooks_per_month"`
	MaxVideoSeconds       Limit `json:"max_video_seconds"`
	MaxEbookPages         Limit `json:"max_ebook_pages"`
	StorageGB             Limit `json:"storage_gb"`
	TeamMembers           Limit `json:"team_members"`
}

// Get returns the limit for a named quota. Unknown names are unbounded so a
// lookup never blocks a gate decision on a typo.
func (l PlanLimits) Get(name LimitName) Limit {
	switch name {
	case LimitToolsPerDay:
		return l.ToolsPerDay
	case LimitAIGenerationsPerMonth:
		return l.AIGenerationsPerMonth
	case LimitVideosPerMonth:
		return l.VideosPerMonth
	case LimitEbooksPerMonth:
		return l.EbooksPerMonth
	case LimitMaxVideoSeconds:
		return l.MaxVideoSeconds
	case LimitMaxEbookPages:
		return l.MaxEbookPages
	case LimitStorageGB:
		return l.StorageGB
	case LimitTeamMembers:
		return l.TeamMembers
	default:
		return Unbounded
	}
}

// PlanPermissions holds the feature switches of a plan.
type PlanPermissions struct {
	BasicTools      bool `json:"basic_tools"`
	AdvancedTools   bool `json:"advanced_tools"`
	PremiumTools    bool `json:"premium_tools"`
	APIAccess       bool `json:"api_access"`
	WhiteLabel      bool `json:"white_label"`
	CustomTemplates bool `json:"custom_templates"`
}

// Plan is an immutable plan definition, versioned by name.
type Plan struct {
	Name          string          `json:"name"`
	MonthlyPrice  float64         `json:"monthly_price"`
	Limits        PlanLimits      `json:"limits"`
	Permissions   PlanPermissions `json:"permissions"`
	AnalyticsTier string          `json:"analytics_tier"`
}

// AllowsTool reports whether the plan's permissions cover a tool class.
func (p Plan) AllowsTool(tool ToolType) bool {
	switch tool {
	case ToolAIGeneration:
		return p.Permissions.BasicTools
	case ToolVideo:
		return p.Permissions.AdvancedTools
	case ToolEbook:
		return p.Permissions.AdvancedTools
	default:
		return p.Permissions.BasicTools
	}
}

// ToolType classifies the opaque operation being gated.
type ToolType string

const (
	ToolAIGeneration ToolType = "ai_generation"
	ToolVideo        ToolType = "video"
	ToolEbook        ToolType = "ebook"
)
