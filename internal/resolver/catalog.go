package resolver

import (
	"ecosystem-api/internal/store"

	"github.com/jinzhu/inflection"
)

type fieldKind int

const (
	kindID fieldKind = iota
	kindString
	kindInt
	kindFloat
	kindBoolean
	kindEnum
)

type fieldDef struct {
	Name        string
	Kind        fieldKind
	Enum        string
	List        bool
	Description string
}

type relationDef struct {
	Field       string
	Target      string
	ParentField string
	ChildField  string
	// Paginated adds offset and limit arguments applied after matching.
	Paginated   bool
	Description string
}

type entityDef struct {
	Type        string
	Collection  string
	Description string
	// Query is the filtered query name; the plural query is derived from it
	// unless Plural is set.
	Query  string
	Plural string
	// Paginated adds limit and offset to the plural query.
	Paginated bool
	// FilterCap is the number of filter fields a caller may supply. Zero means one.
	FilterCap     int
	Filter        []string
	CategoryField string
	Fields        []fieldDef
	Relations     []relationDef
}

func (e entityDef) pluralQuery() string {
	if e.Plural != "" {
		return e.Plural
	}
	return inflection.Plural(e.Query)
}

func (e entityDef) filterCap() int {
	if e.FilterCap > 0 {
		return e.FilterCap
	}
	return 1
}

func (e entityDef) field(name string) (fieldDef, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return fieldDef{}, false
}

func (e entityDef) columns() []string {
	cols := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

func id(name string) fieldDef      { return fieldDef{Name: name, Kind: kindID} }
func str(name string) fieldDef     { return fieldDef{Name: name, Kind: kindString} }
func integer(name string) fieldDef { return fieldDef{Name: name, Kind: kindInt} }
func float(name string) fieldDef   { return fieldDef{Name: name, Kind: kindFloat} }
func boolean(name string) fieldDef { return fieldDef{Name: name, Kind: kindBoolean} }

func enum(name, enumName string) fieldDef {
	return fieldDef{Name: name, Kind: kindEnum, Enum: enumName}
}

func describe(f fieldDef, description string) fieldDef {
	f.Description = description
	return f
}

type enumDef struct {
	Name   string
	Values []string
}

var enumDefs = []enumDef{
	{"CoreUnitCategory", []string{"Technical", "Support", "Operational", "Business", "RWAs", "Growth", "Finance", "Legal"}},
	{"BudgetStatus", []string{"Final", "Draft", "SubmittedToAuditor", "AwaitingCorrections"}},
	{"RoadmapStatus", []string{"Todo", "InProgress", "Done"}},
	{"TaskStatus", []string{"ToDo", "InProgress", "Done", "WontDo", "Blocked", "Backlog"}},
	{"ConfidenceLevel", []string{"High", "Medium", "Low"}},
	{"ReviewOutcome", []string{"Red", "Yellow", "Green"}},
	{"Commitment", []string{"FULLTIME", "PARTTIME", "VARIABLE", "INACTIVE"}},
}

var entityDefs = []entityDef{
	{
		Type:          "CoreUnit",
		Collection:    "CoreUnit",
		Query:         "coreUnit",
		Paginated:     true,
		Filter:        []string{"id", "code", "name", "shortCode"},
		CategoryField: "category",
		Fields: []fieldDef{
			id("id"),
			describe(str("code"), "Core Unit code as defined within the Core Unit's MIP39"),
			describe(str("name"), "Core Unit name as defined within the Core Unit's MIP39"),
			describe(str("image"), "Logo image reference"),
			{Name: "category", Kind: kindEnum, Enum: "CoreUnitCategory", List: true, Description: "Type of core unit"},
			str("sentenceDescription"),
			str("paragraphDescription"),
			str("paragraphImage"),
			str("shortCode"),
		},
		Relations: []relationDef{
			{Field: "cuMip", Target: "CuMip", ParentField: "id", ChildField: "cuId", Description: "MIPs 39/40/41 of the Core Unit"},
			{Field: "budgetStatements", Target: "BudgetStatement", ParentField: "id", ChildField: "cuId", Description: "Budget statements of the Core Unit"},
			{Field: "socialMediaChannels", Target: "SocialMediaChannels", ParentField: "id", ChildField: "cuId"},
			{Field: "contributorCommitment", Target: "ContributorCommitment", ParentField: "id", ChildField: "cuId", Description: "Work basis of the contributors to the Core Unit"},
			{Field: "cuGithubContribution", Target: "CuGithubContribution", ParentField: "id", ChildField: "cuId"},
			{Field: "roadMap", Target: "Roadmap", ParentField: "id", ChildField: "ownerCuId", Description: "Work performed and planned by the Core Unit"},
		},
	},
	{
		Type:       "CuMip",
		Collection: "CuMip",
		Query:      "cuMip",
		Filter:     []string{"id", "mipCode", "cuId", "mipStatus"},
		Fields: []fieldDef{
			id("id"), str("mipCode"), id("cuId"), str("rfc"), str("formalProvisions"),
			str("accepted"), str("rejected"), str("obsolete"), str("mipStatus"),
			str("mipUrl"), str("mipTitle"), str("forumUrl"),
		},
	},
	{
		Type:       "SocialMediaChannels",
		Collection: "SocialMediaChannels",
		Query:      "socialMediaChannel",
		Filter:     []string{"id", "cuId"},
		Fields: []fieldDef{
			id("id"), id("cuId"), str("forumTag"), str("twitter"), str("youtube"),
			str("discord"), str("linkedIn"), str("website"), str("github"),
		},
	},
	{
		Type:       "ContributorCommitment",
		Collection: "ContributorCommitment",
		Query:      "contributorCommitment",
		Filter:     []string{"id", "cuId", "cuCode", "contributorId", "commitment"},
		Fields: []fieldDef{
			id("id"), id("cuId"), str("cuCode"), id("contributorId"), str("startDate"),
			enum("commitment", "Commitment"),
		},
	},
	{
		Type:       "CuGithubContribution",
		Collection: "CuGithubContribution",
		Query:      "cuGithubContribution",
		Filter:     []string{"id", "cuId", "orgId", "repoId"},
		Fields:     []fieldDef{id("id"), id("cuId"), id("orgId"), id("repoId")},
	},
	{
		Type:       "BudgetStatement",
		Collection: "BudgetStatement",
		Query:      "budgetStatement",
		Paginated:  true,
		FilterCap:  2,
		Filter:     []string{"id", "cuId", "month", "comments", "budgetStatus", "publicationUrl", "cuCode"},
		Fields: []fieldDef{
			id("id"),
			id("cuId"),
			describe(str("month"), "Month of the budget statement"),
			str("comments"),
			describe(enum("budgetStatus", "BudgetStatus"), "Status of the budget statement"),
			describe(str("publicationUrl"), "Link to the complete publication of the budget statement"),
			str("cuCode"),
		},
		Relations: []relationDef{
			{Field: "budgetStatementFTEs", Target: "BudgetStatementFTEs", ParentField: "id", ChildField: "budgetStatementId", Description: "Full-time employees in the budget statement"},
			{Field: "budgetStatementMKRVest", Target: "BudgetStatementMKRVest", ParentField: "id", ChildField: "budgetStatementId"},
			{Field: "budgetStatementWallet", Target: "BudgetStatementWallet", ParentField: "id", ChildField: "budgetStatementId"},
		},
	},
	{
		Type:       "BudgetStatementFTEs",
		Collection: "BudgetStatementFtes",
		Query:      "budgetStatementFTE",
		Plural:     "budgetStatementFTEs",
		Filter:     []string{"id", "budgetStatementId", "month", "ftes"},
		Fields:     []fieldDef{id("id"), id("budgetStatementId"), str("month"), float("ftes")},
	},
	{
		Type:       "BudgetStatementMKRVest",
		Collection: "BudgetStatementMkrVest",
		Query:      "budgetStatementMKRVest",
		Plural:     "budgetStatementMKRVests",
		Filter:     []string{"id", "budgetStatementId", "vestingDate", "mkrAmount", "mkrAmountOld", "comments"},
		Fields: []fieldDef{
			id("id"), id("budgetStatementId"), str("vestingDate"),
			float("mkrAmount"), float("mkrAmountOld"), str("comments"),
		},
	},
	{
		Type:       "BudgetStatementWallet",
		Collection: "BudgetStatementWallet",
		Query:      "budgetStatementWallet",
		Filter:     []string{"id", "budgetStatementId", "name", "address", "currentBalance", "topupTransfer", "comments"},
		Fields: []fieldDef{
			id("id"), id("budgetStatementId"), str("name"), str("address"),
			float("currentBalance"), float("topupTransfer"), str("comments"),
		},
		Relations: []relationDef{
			{Field: "budgetStatementLineItem", Target: "BudgetStatementLineItem", ParentField: "id", ChildField: "budgetStatementWalletId", Paginated: true, Description: "Line items that make up the budget statement"},
			{Field: "budgetStatementPayment", Target: "BudgetStatementPayment", ParentField: "id", ChildField: "budgetStatementWalletId"},
		},
	},
	{
		Type:       "BudgetStatementLineItem",
		Collection: "BudgetStatementLineItem",
		Query:      "budgetStatementLineItem",
		Paginated:  true,
		Filter:     []string{"id", "budgetStatementWalletId", "month", "position", "group", "budgetCategory", "forecast", "actual", "comments"},
		Fields: []fieldDef{
			id("id"), id("budgetStatementWalletId"), str("month"), integer("position"),
			str("group"), str("budgetCategory"), float("forecast"), float("actual"),
			str("comments"), str("canonicalBudgetCategory"), boolean("headcountExpense"),
		},
	},
	{
		Type:       "BudgetStatementPayment",
		Collection: "BudgetStatementPayment",
		Query:      "budgetStatementPayment",
		Filter:     []string{"id", "budgetStatementWalletId", "transactionDate", "transactionId", "budgetStatementLineItemId", "comments"},
		Fields: []fieldDef{
			id("id"), id("budgetStatementWalletId"), str("transactionDate"),
			str("transactionId"), integer("budgetStatementLineItemId"), str("comments"),
		},
	},
	{
		Type:        "Roadmap",
		Collection:  "Roadmap",
		Description: "Core Unit or cross Core Unit initiative",
		Query:       "roadmap",
		Filter:      []string{"id", "ownerCuId", "roadmapCode", "roadmapName", "comments", "roadmapStatus", "strategicInitiative"},
		Fields: []fieldDef{
			id("id"),
			describe(id("ownerCuId"), "Roadmap owner. Null for cross Core Unit initiatives"),
			str("roadmapCode"), str("roadmapName"), str("comments"),
			enum("roadmapStatus", "RoadmapStatus"),
			boolean("strategicInitiative"), str("roadmapSummary"),
		},
		Relations: []relationDef{
			{Field: "roadmapStakeholder", Target: "RoadmapStakeholder", ParentField: "id", ChildField: "roadmapId"},
			{Field: "roadmapOutput", Target: "RoadmapOutput", ParentField: "id", ChildField: "roadmapId", Description: "Documents showcasing the results of the roadmap"},
			{Field: "milestone", Target: "Milestone", ParentField: "id", ChildField: "roadmapId"},
		},
	},
	{
		Type:       "RoadmapStakeholder",
		Collection: "RoadmapStakeholder",
		Query:      "roadmapStakeholder",
		Filter:     []string{"id", "stakeholderId", "roadmapId", "stakeholderRoleId"},
		Fields:     []fieldDef{id("id"), id("stakeholderId"), id("roadmapId"), id("stakeholderRoleId")},
		Relations: []relationDef{
			{Field: "stakeholderRole", Target: "StakeholderRole", ParentField: "stakeholderRoleId", ChildField: "id"},
			{Field: "stakeholder", Target: "Stakeholder", ParentField: "stakeholderId", ChildField: "id"},
		},
	},
	{
		Type:       "Stakeholder",
		Collection: "Stakeholder",
		Query:      "stakeholder",
		Filter:     []string{"id", "name", "stakeholderContributorId", "stakeholderCuCode"},
		Fields:     []fieldDef{id("id"), str("name"), id("stakeholderContributorId"), str("stakeholderCuCode")},
		Relations: []relationDef{
			{Field: "roadmapStakeholder", Target: "RoadmapStakeholder", ParentField: "id", ChildField: "stakeholderId"},
		},
	},
	{
		Type:       "StakeholderRole",
		Collection: "StakeholderRole",
		Query:      "stakeholderRole",
		Filter:     []string{"id", "stakeholderRoleName"},
		Fields:     []fieldDef{id("id"), str("stakeholderRoleName")},
	},
	{
		Type:       "RoadmapOutput",
		Collection: "RoadmapOutput",
		Query:      "roadmapOutput",
		Filter:     []string{"id", "outputId", "roadmapId", "outputTypeId"},
		Fields:     []fieldDef{id("id"), id("outputId"), id("roadmapId"), id("outputTypeId")},
		Relations: []relationDef{
			{Field: "output", Target: "Output", ParentField: "outputId", ChildField: "id"},
			{Field: "outputType", Target: "OutputType", ParentField: "outputTypeId", ChildField: "id"},
		},
	},
	{
		Type:       "Output",
		Collection: "Output",
		Query:      "output",
		Filter:     []string{"id", "name", "outputUrl"},
		Fields:     []fieldDef{id("id"), str("name"), str("outputUrl"), str("outputDate")},
	},
	{
		Type:       "OutputType",
		Collection: "OutputType",
		Query:      "outputType",
		Filter:     []string{"id", "outputType"},
		Fields:     []fieldDef{id("id"), str("outputType")},
	},
	{
		Type:        "Milestone",
		Collection:  "Milestone",
		Description: "Parent task under a roadmap",
		Query:       "milestone",
		Filter:      []string{"id", "roadmapId", "taskId"},
		Fields:      []fieldDef{id("id"), id("roadmapId"), id("taskId")},
		Relations: []relationDef{
			{Field: "task", Target: "Task", ParentField: "taskId", ChildField: "id"},
		},
	},
	{
		Type:        "Task",
		Collection:  "Task",
		Description: "Task under a milestone. A task with a parentId is a sub task",
		Query:       "task",
		Filter:      []string{"id", "parentId", "taskName", "taskStatus", "ownerStakeholderId", "startDate", "target", "completedPercentage", "confidenceLevel"},
		Fields: []fieldDef{
			id("id"), id("parentId"), str("taskName"), enum("taskStatus", "TaskStatus"),
			id("ownerStakeholderId"), str("startDate"), str("target"),
			float("completedPercentage"), enum("confidenceLevel", "ConfidenceLevel"), str("comments"),
		},
		Relations: []relationDef{
			{Field: "review", Target: "Review", ParentField: "id", ChildField: "taskId"},
		},
	},
	{
		Type:       "Review",
		Collection: "Review",
		Query:      "review",
		Filter:     []string{"id", "taskId", "reviewDate", "reviewOutcome"},
		Fields:     []fieldDef{id("id"), id("taskId"), str("reviewDate"), enum("reviewOutcome", "ReviewOutcome")},
	},
}

// batchInputDef declares an input object accepted by a batch mutation.
type batchInputDef struct {
	Name     string
	Entity   string
	Fields   []string
	Required []string
}

var (
	budgetStatementAddInput = batchInputDef{
		Name:   "BudgetStatementBatchAddInput",
		Entity: "BudgetStatement",
		Fields: []string{"cuId", "month", "comments", "budgetStatus", "publicationUrl", "cuCode"},
	}
	walletAddInput = batchInputDef{
		Name:     "BudgetStatementWalletBatchAddInput",
		Entity:   "BudgetStatementWallet",
		Fields:   []string{"budgetStatementId", "name", "address", "currentBalance", "topupTransfer", "comments"},
		Required: []string{"budgetStatementId"},
	}
	lineItemFields = []string{
		"budgetStatementWalletId", "month", "position", "group", "budgetCategory",
		"forecast", "actual", "comments", "canonicalBudgetCategory", "headcountExpense",
	}
	lineItemAddInput = batchInputDef{
		Name:     "LineItemsBatchAddInput",
		Entity:   "BudgetStatementLineItem",
		Fields:   lineItemFields,
		Required: []string{"budgetStatementWalletId"},
	}
	lineItemUpdateInput = batchInputDef{
		Name:   "LineItemsBatchUpdateInput",
		Entity: "BudgetStatementLineItem",
		Fields: append([]string{"id"}, lineItemFields...),
	}
	lineItemDeleteInput = batchInputDef{
		Name:   "LineItemsBatchDeleteInput",
		Entity: "BudgetStatementLineItem",
		Fields: append([]string{"id"}, lineItemFields...),
	}
)

func entityByType(name string) (entityDef, bool) {
	for _, e := range entityDefs {
		if e.Type == name {
			return e, true
		}
	}
	return entityDef{}, false
}

// Collections returns the store catalog for every exposed entity.
func Collections() store.Catalog {
	collections := make([]store.Collection, 0, len(entityDefs))
	for _, e := range entityDefs {
		collections = append(collections, store.Collection{
			Name:    e.Collection,
			Columns: e.columns(),
		})
	}
	return store.NewCatalog(collections...)
}
