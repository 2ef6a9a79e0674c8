package api

import (
	"github.com/courier-labs/courier/internal/config"
	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/pkg/openapi"
)

// buildSpec assembles the OpenAPI document for the mounted API routes.
func buildSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.Docs.Title, cfg.Version)
	spec.SetDescription(cfg.API.Docs.Description)
	spec.AddServer(cfg.API.BasePath)

	spec.Components.AddSchemas(documentSchemas())
	spec.Components.AddSchemas(pipelineSchemas())
	spec.Components.AddSchemas(partySchemas())
	spec.Components.AddResponses(map[string]*openapi.Response{
		"PayloadTooLarge": openapi.ErrorResponse("Uploaded file exceeds the configured size limit"),
	})

	documentPaths(spec)
	partyPaths(spec)

	return spec
}

func docTypeValues() []any {
	values := make([]any, len(documents.DocTypes))
	for i, t := range documents.DocTypes {
		values[i] = string(t)
	}
	return values
}

func documentSchemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Classification": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"method":            {Type: "string", Description: "Strategy that produced the type", Example: "source-code"},
				"confidence":        {Type: "number"},
				"suggested_type":    {Type: "string", Enum: docTypeValues()},
				"ai_suggested_type": {Type: "string", Description: "Model suggestion, recorded even when rejected"},
				"ai_confidence":     {Type: "number"},
			},
		},
		"MatchResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"method":   {Type: "string", Description: "Strategy that resolved the party", Example: "exact-id"},
				"score":    {Type: "number"},
				"party_id": {Type: "string", Format: "uuid"},
			},
		},
		"Document": {
			Type:     "object",
			Required: []string{"id", "doc_type", "source", "workflow_status"},
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid"},
				"doc_type":        {Type: "string", Enum: docTypeValues()},
				"source":          {Type: "string", Example: "edi"},
				"source_metadata": openapi.MapSchema(&openapi.Schema{Type: "string"}),
				"raw_fields":      openapi.MapSchema(nil),
				"classification":  openapi.SchemaRef("Classification"),
				"match_result":    openapi.SchemaRef("MatchResult"),
				"workflow_status": {Type: "string", Example: "erp_validation_pending"},
				"party_id":        {Type: "string", Format: "uuid"},
				"party_name":      {Type: "string"},
				"document_number": {Type: "string"},
				"amount":          {Type: "number"},
				"filename":        {Type: "string"},
				"content_type":    {Type: "string"},
				"size_bytes":      {Type: "integer"},
				"page_count":      {Type: "integer"},
				"last_error":      {Type: "string"},
				"version":         {Type: "integer"},
				"created_at":      {Type: "string", Format: "date-time"},
				"updated_at":      {Type: "string", Format: "date-time"},
			},
		},
		"HistoryEntry": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          {Type: "integer"},
				"document_id": {Type: "string", Format: "uuid"},
				"from_status": {Type: "string"},
				"to_status":   {Type: "string"},
				"event":       {Type: "string"},
				"actor":       {Type: "string"},
				"reason":      {Type: "string"},
				"occurred_at": {Type: "string", Format: "date-time"},
			},
		},
		"ExternalRef": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"document_id": {Type: "string", Format: "uuid"},
				"system":      {Type: "string", Example: "erp"},
				"ref":         {Type: "string"},
				"created_at":  {Type: "string", Format: "date-time"},
			},
		},
		"DocumentPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Document")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"DocumentSearchRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"page":             {Type: "integer"},
				"page_size":        {Type: "integer"},
				"search":           {Type: "string"},
				"sort":             {Type: "string", Example: "-created_at"},
				"doc_type":         {Type: "string", Enum: docTypeValues()},
				"status":           {Type: "string"},
				"source":           {Type: "string"},
				"party_id":         {Type: "string", Format: "uuid"},
				"document_number":  {Type: "string"},
				"submitted_after":  {Type: "string", Format: "date-time"},
				"submitted_before": {Type: "string", Format: "date-time"},
			},
		},
	}
}

func pipelineSchemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"SubmitRequest": {
			Type:     "object",
			Required: []string{"source"},
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid", Description: "Preset id for idempotent submission"},
				"source":          {Type: "string", Example: "edi"},
				"source_metadata": openapi.MapSchema(&openapi.Schema{Type: "string"}),
				"raw_fields":      openapi.MapSchema(nil),
				"actor":           {Type: "string"},
			},
		},
		"BatchItem": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"index":    {Type: "integer"},
				"document": openapi.SchemaRef("Document"),
				"error":    {Type: "string"},
			},
		},
		"TransitionRequest": {
			Type:     "object",
			Required: []string{"event"},
			Properties: map[string]*openapi.Schema{
				"event":       {Type: "string", Example: "approve"},
				"actor":       {Type: "string"},
				"reason":      {Type: "string"},
				"erp_ref":     {Type: "string", Description: "ERP reference established out of band"},
				"invoice_ref": {Type: "string", Description: "Invoice reference established out of band"},
			},
		},
		"ReprocessRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"actor": {Type: "string"},
			},
		},
		"OverrideMatchRequest": {
			Type:     "object",
			Required: []string{"party_id"},
			Properties: map[string]*openapi.Schema{
				"party_id": {Type: "string", Format: "uuid"},
				"actor":    {Type: "string"},
				"reason":   {Type: "string"},
			},
		},
		"ReclassifyRequest": {
			Type:     "object",
			Required: []string{"doc_type"},
			Properties: map[string]*openapi.Schema{
				"doc_type": {Type: "string", Enum: docTypeValues()},
				"actor":    {Type: "string"},
				"reason":   {Type: "string"},
			},
		},
	}
}

func partySchemas() map[string]*openapi.Schema {
	kindValues := []any{"vendor", "customer", "both"}

	return map[string]*openapi.Schema{
		"Party": {
			Type:     "object",
			Required: []string{"id", "number", "name", "kind"},
			Properties: map[string]*openapi.Schema{
				"id":         {Type: "string", Format: "uuid"},
				"number":     {Type: "string", Example: "V-100"},
				"name":       {Type: "string"},
				"kind":       {Type: "string", Enum: kindValues},
				"active":     {Type: "boolean"},
				"created_at": {Type: "string", Format: "date-time"},
				"updated_at": {Type: "string", Format: "date-time"},
			},
		},
		"Alias": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":         {Type: "string", Format: "uuid"},
				"party_id":   {Type: "string", Format: "uuid"},
				"alias":      {Type: "string", Description: "Normalized name variant"},
				"score":      {Type: "number"},
				"created_by": {Type: "string"},
				"created_at": {Type: "string", Format: "date-time"},
			},
		},
		"PartyPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Party")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"CreateParty": {
			Type:     "object",
			Required: []string{"number", "name", "kind"},
			Properties: map[string]*openapi.Schema{
				"number": {Type: "string"},
				"name":   {Type: "string"},
				"kind":   {Type: "string", Enum: kindValues},
				"active": {Type: "boolean", Default: true},
			},
		},
		"UpdateParty": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"name":   {Type: "string"},
				"kind":   {Type: "string", Enum: kindValues},
				"active": {Type: "boolean"},
			},
		},
		"CreateAlias": {
			Type:     "object",
			Required: []string{"alias"},
			Properties: map[string]*openapi.Schema{
				"alias":      {Type: "string"},
				"score":      {Type: "number"},
				"created_by": {Type: "string"},
			},
		},
		"PartySearchRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"page":      {Type: "integer"},
				"page_size": {Type: "integer"},
				"search":    {Type: "string"},
				"sort":      {Type: "string"},
				"number":    {Type: "string"},
				"kind":      {Type: "string", Enum: kindValues},
				"active":    {Type: "boolean"},
			},
		},
	}
}

func documentPaths(spec *openapi.Spec) {
	docTags := []string{"documents"}
	pipelineTags := []string{"pipeline"}
	idParam := openapi.PathParam("id", "Document ID")

	listParams := []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Search query", false),
		openapi.QueryParam("sort", "string", "Comma-separated sort fields", false),
		openapi.QueryParam("doc_type", "string", "Filter by document type", false),
		openapi.QueryParam("status", "string", "Filter by workflow status", false),
		openapi.QueryParam("source", "string", "Filter by intake source", false),
		openapi.QueryParam("party_id", "string", "Filter by matched party", false),
		openapi.QueryParam("document_number", "string", "Filter by document number", false),
	}

	spec.Paths["/documents"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "List documents",
			Tags:       docTags,
			Parameters: listParams,
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("A page of documents", "DocumentPage"),
			},
		},
		Post: &openapi.Operation{
			Summary:     "Submit a document",
			Description: "Registers a raw intake record and runs classification, matching, and the automation gate.",
			Tags:        pipelineTags,
			RequestBody: openapi.RequestBodyJSON("SubmitRequest", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("The processed document", "Document"),
				400: openapi.ResponseRef("BadRequest"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	spec.Paths["/documents/search"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Search documents",
			Tags:        docTags,
			RequestBody: openapi.RequestBodyJSON("DocumentSearchRequest", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("A page of documents", "DocumentPage"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/documents/upload"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Submit a document with a source file",
			Description: "Multipart form fields: source, actor, raw_fields (JSON), source_metadata (JSON), file.",
			Tags:        pipelineTags,
			RequestBody: &openapi.RequestBody{
				Required: true,
				Content: map[string]*openapi.MediaType{
					"multipart/form-data": {
						Schema: &openapi.Schema{
							Type:     "object",
							Required: []string{"source", "file"},
							Properties: map[string]*openapi.Schema{
								"source":          {Type: "string"},
								"actor":           {Type: "string"},
								"raw_fields":      {Type: "string", Description: "JSON-encoded extracted fields"},
								"source_metadata": {Type: "string", Description: "JSON-encoded source metadata"},
								"file":            {Type: "string", Format: "binary"},
							},
						},
					},
				},
			},
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("The processed document", "Document"),
				400: openapi.ResponseRef("BadRequest"),
				413: openapi.ResponseRef("PayloadTooLarge"),
			},
		},
	}

	spec.Paths["/documents/batch"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Submit a batch of documents",
			Description: "Per-record failures are reported in the result items, not as a request error.",
			Tags:        pipelineTags,
			RequestBody: &openapi.RequestBody{
				Required: true,
				Content: map[string]*openapi.MediaType{
					"application/json": {
						Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("SubmitRequest")},
					},
				},
			},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Per-record outcomes in submission order",
					Content: map[string]*openapi.MediaType{
						"application/json": {
							Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("BatchItem")},
						},
					},
				},
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/documents/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get a document",
			Tags:       docTags,
			Parameters: []*openapi.Parameter{idParam},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("The document", "Document"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/documents/{id}/history"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get workflow history",
			Tags:       docTags,
			Parameters: []*openapi.Parameter{idParam},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "History entries, oldest first",
					Content: map[string]*openapi.MediaType{
						"application/json": {
							Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("HistoryEntry")},
						},
					},
				},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/documents/{id}/refs"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get external references",
			Tags:       docTags,
			Parameters: []*openapi.Parameter{idParam},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "External system references",
					Content: map[string]*openapi.MediaType{
						"application/json": {
							Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("ExternalRef")},
						},
					},
				},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/documents/{id}/file"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Download the source file",
			Tags:       docTags,
			Parameters: []*openapi.Parameter{idParam},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "The stored source file",
					Content: map[string]*openapi.MediaType{
						"application/octet-stream": {
							Schema: &openapi.Schema{Type: "string", Format: "binary"},
						},
					},
				},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/documents/{id}/transition"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Apply a workflow event",
			Tags:        pipelineTags,
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("TransitionRequest", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("The transitioned document", "Document"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	spec.Paths["/documents/{id}/reprocess"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Reprocess a document",
			Description: "Re-runs classification, matching, and the automation gate on the stored raw fields. Safe to repeat.",
			Tags:        pipelineTags,
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("ReprocessRequest", false),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("The repositioned document", "Document"),
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	spec.Paths["/documents/{id}/match"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Override the party match",
			Description: "Manually resolves the party, learns an alias from the document's name field, and re-gates documents held for vendor matching.",
			Tags:        pipelineTags,
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("OverrideMatchRequest", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("The updated document", "Document"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	spec.Paths["/documents/{id}/reclassify"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Reclassify a document",
			Tags:        pipelineTags,
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("ReclassifyRequest", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("The reclassified document", "Document"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}
}

func partyPaths(spec *openapi.Spec) {
	tags := []string{"parties"}
	idParam := openapi.PathParam("id", "Party ID")

	spec.Paths["/parties"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List parties",
			Tags:    tags,
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
				openapi.QueryParam("page_size", "integer", "Results per page", false),
				openapi.QueryParam("search", "string", "Search query", false),
				openapi.QueryParam("sort", "string", "Comma-separated sort fields", false),
				openapi.QueryParam("number", "string", "Filter by party number", false),
				openapi.QueryParam("kind", "string", "Filter by kind", false),
				openapi.QueryParam("active", "boolean", "Filter by active flag", false),
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("A page of parties", "PartyPage"),
			},
		},
		Post: &openapi.Operation{
			Summary:     "Create a party",
			Tags:        tags,
			RequestBody: openapi.RequestBodyJSON("CreateParty", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("The created party", "Party"),
				400: openapi.ResponseRef("BadRequest"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	spec.Paths["/parties/search"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Search parties",
			Tags:        tags,
			RequestBody: openapi.RequestBodyJSON("PartySearchRequest", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("A page of parties", "PartyPage"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/parties/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get a party",
			Tags:       tags,
			Parameters: []*openapi.Parameter{idParam},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("The party", "Party"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Put: &openapi.Operation{
			Summary:     "Update a party",
			Tags:        tags,
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("UpdateParty", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("The updated party", "Party"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/parties/{id}/aliases"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "List aliases",
			Tags:       tags,
			Parameters: []*openapi.Parameter{idParam},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Aliases recorded for the party",
					Content: map[string]*openapi.MediaType{
						"application/json": {
							Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Alias")},
						},
					},
				},
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Post: &openapi.Operation{
			Summary:     "Record an alias",
			Tags:        tags,
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("CreateAlias", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("The recorded alias", "Alias"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}
}
