// Package dynamodb implements ports.ProjectStore on a single DynamoDB table.
//
// Item layout:
//
//	PK=PROJECT#<id>       SK=PROJECT            full document (JSON) + summary attributes
//	PK=JOINCODE#<code>    SK=JOINCODE           join code uniqueness guard
//	PK=USER#<userID>      SK=PROJECT#<id>       membership index for listing
//
// Every write that touches more than one item goes through TransactWriteItems
// so the document and its index items never drift apart.
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

const (
	entityProject    = "PROJECT"
	entityJoinCode   = "JOINCODE"
	entityMembership = "MEMBERSHIP"

	maxTransactItems = 100
	maxBatchGetKeys  = 100
	maxBatchWrite    = 25
	maxBatchRetries  = 5
)

// API is the subset of the DynamoDB client the store uses
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// NewClient builds a DynamoDB client from the default AWS credential chain.
// A non-empty endpoint points it at DynamoDB Local or another emulator.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

type projectItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ProjectID  string `dynamodbav:"ProjectID"`
	Name       string `dynamodbav:"Name"`
	OwnerID    string `dynamodbav:"OwnerID"`
	JoinCode   string `dynamodbav:"JoinCode"`
	Document   string `dynamodbav:"Document"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

type joinCodeItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ProjectID  string `dynamodbav:"ProjectID"`
}

type membershipItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ProjectID  string `dynamodbav:"ProjectID"`
	UserID     string `dynamodbav:"UserID"`
	Role       string `dynamodbav:"Role"`
}

func projectPK(id string) string { return "PROJECT#" + id }
func joinCodePK(code string) string { return "JOINCODE#" + code }
func userPK(userID string) string { return "USER#" + userID }
func membershipSK(id string) string { return "PROJECT#" + id }

func projectKey(id string) map[string]types.AttributeValue {
	return key(projectPK(id), entityProject)
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// ProjectStore implements ports.ProjectStore using DynamoDB
type ProjectStore struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewProjectStore creates a new ProjectStore
func NewProjectStore(client API, tableName string, logger *zap.Logger) *ProjectStore {
	return &ProjectStore{
		client:    client,
		tableName: tableName,
		logger:    logger.With(zap.String("component", "dynamodb_store"), zap.String("table", tableName)),
	}
}

func toProjectItem(p *project.Project) (projectItem, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return projectItem{}, err
	}
	return projectItem{
		PK:         projectPK(p.ID),
		SK:         entityProject,
		EntityType: entityProject,
		ProjectID:  p.ID,
		Name:       p.Name,
		OwnerID:    p.Owner.ID,
		JoinCode:   p.JoinCode,
		Document:   string(doc),
		UpdatedAt:  p.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func fromProjectItem(av map[string]types.AttributeValue) (*project.Project, error) {
	var item projectItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project item: %w", err)
	}
	var p project.Project
	if err := json.Unmarshal([]byte(item.Document), &p); err != nil {
		return nil, fmt.Errorf("failed to decode project document: %w", err)
	}
	return &p, nil
}

func (s *ProjectStore) put(item interface{}, cond expression.ConditionBuilder) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal item: %w", err)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to build condition: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:                 aws.String(s.tableName),
			Item:                      av,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	}, nil
}

func (s *ProjectStore) putMembership(p *project.Project, userID string) (types.TransactWriteItem, error) {
	m, _ := p.FindMember(userID)
	av, err := attributevalue.MarshalMap(membershipItem{
		PK:         userPK(userID),
		SK:         membershipSK(p.ID),
		EntityType: entityMembership,
		ProjectID:  p.ID,
		UserID:     userID,
		Role:       string(m.Role),
	})
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal membership: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{TableName: aws.String(s.tableName), Item: av},
	}, nil
}

func (s *ProjectStore) delete(k map[string]types.AttributeValue) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{TableName: aws.String(s.tableName), Key: k},
	}
}

func (s *ProjectStore) transact(ctx context.Context, items []types.TransactWriteItem) error {
	if len(items) > maxTransactItems {
		return apperrors.NewValidationf("write touches %d items, the limit is %d", len(items), maxTransactItems)
	}
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return err
}

// Create inserts the project, its join code guard and one membership item
// per member
func (s *ProjectStore) Create(ctx context.Context, p *project.Project) error {
	if p == nil || p.ID == "" {
		return apperrors.NewValidation("project id is required")
	}

	item, err := toProjectItem(p)
	if err != nil {
		return apperrors.NewInternal("failed to encode project", err)
	}
	notExists := expression.AttributeNotExists(expression.Name("PK"))

	putProject, err := s.put(item, notExists)
	if err != nil {
		return apperrors.NewInternal("failed to build project write", err)
	}
	putCode, err := s.put(joinCodeItem{
		PK:         joinCodePK(p.JoinCode),
		SK:         entityJoinCode,
		EntityType: entityJoinCode,
		ProjectID:  p.ID,
	}, notExists)
	if err != nil {
		return apperrors.NewInternal("failed to build join code write", err)
	}

	items := []types.TransactWriteItem{putProject, putCode}
	for _, userID := range p.MemberIDs() {
		m, err := s.putMembership(p, userID)
		if err != nil {
			return apperrors.NewInternal("failed to build membership write", err)
		}
		items = append(items, m)
	}

	if err := s.transact(ctx, items); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			switch failedCondition(tce) {
			case 0:
				return apperrors.NewConflict("project already exists")
			case 1:
				return apperrors.NewConflict("join code already in use")
			}
		}
		s.logger.Error("Failed to create project", zap.String("projectID", p.ID), zap.Error(err))
		return classifyError(err, "failed to create project")
	}

	s.logger.Debug("Project created", zap.String("projectID", p.ID), zap.Int("items", len(items)))
	return nil
}

// Save replaces the document. Membership and join code items are rewritten
// only when they change.
func (s *ProjectStore) Save(ctx context.Context, p *project.Project) error {
	if p == nil || p.ID == "" {
		return apperrors.NewValidation("project id is required")
	}

	current, err := s.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}

	item, err := toProjectItem(p)
	if err != nil {
		return apperrors.NewInternal("failed to encode project", err)
	}
	putProject, err := s.put(item, expression.AttributeExists(expression.Name("PK")))
	if err != nil {
		return apperrors.NewInternal("failed to build project write", err)
	}
	items := []types.TransactWriteItem{putProject}

	if current.JoinCode != p.JoinCode {
		putCode, err := s.put(joinCodeItem{
			PK:         joinCodePK(p.JoinCode),
			SK:         entityJoinCode,
			EntityType: entityJoinCode,
			ProjectID:  p.ID,
		}, expression.AttributeNotExists(expression.Name("PK")))
		if err != nil {
			return apperrors.NewInternal("failed to build join code write", err)
		}
		items = append(items, putCode, s.delete(key(joinCodePK(current.JoinCode), entityJoinCode)))
	}

	added, removed := diffMembers(current.MemberIDs(), p.MemberIDs())
	for _, userID := range added {
		m, err := s.putMembership(p, userID)
		if err != nil {
			return apperrors.NewInternal("failed to build membership write", err)
		}
		items = append(items, m)
	}
	for _, userID := range removed {
		items = append(items, s.delete(key(userPK(userID), membershipSK(p.ID))))
	}

	if err := s.transact(ctx, items); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			switch failedCondition(tce) {
			case 0:
				return apperrors.NewNotFound("project not found")
			case 1:
				return apperrors.NewConflict("join code already in use")
			}
		}
		s.logger.Error("Failed to save project", zap.String("projectID", p.ID), zap.Error(err))
		return classifyError(err, "failed to save project")
	}
	return nil
}

// GetByID retrieves a project by its ID
func (s *ProjectStore) GetByID(ctx context.Context, id string) (*project.Project, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            projectKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classifyError(err, "failed to load project")
	}
	if len(out.Item) == 0 {
		return nil, apperrors.NewNotFound("project not found")
	}
	p, err := fromProjectItem(out.Item)
	if err != nil {
		return nil, apperrors.NewInternal("failed to decode project", err)
	}
	return p, nil
}

// GetByJoinCode resolves the join code guard item, then loads the project
func (s *ProjectStore) GetByJoinCode(ctx context.Context, joinCode string) (*project.Project, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key(joinCodePK(project.NormalizeJoinCode(joinCode)), entityJoinCode),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classifyError(err, "failed to look up join code")
	}
	if len(out.Item) == 0 {
		return nil, apperrors.NewNotFound("no project with that join code")
	}

	var item joinCodeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, apperrors.NewInternal("failed to decode join code", err)
	}
	return s.GetByID(ctx, item.ProjectID)
}

// ListByMember queries the membership index and batch-loads the documents,
// most recently updated first
func (s *ProjectStore) ListByMember(ctx context.Context, userID string) ([]*project.Project, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("SK").BeginsWith("PROJECT#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, apperrors.NewInternal("failed to build membership query", err)
	}

	var projectIDs []string
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyError(err, "failed to list memberships")
		}
		var items []membershipItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, apperrors.NewInternal("failed to decode memberships", err)
		}
		for _, m := range items {
			projectIDs = append(projectIDs, m.ProjectID)
		}
	}

	out := make([]*project.Project, 0, len(projectIDs))
	for start := 0; start < len(projectIDs); start += maxBatchGetKeys {
		end := start + maxBatchGetKeys
		if end > len(projectIDs) {
			end = len(projectIDs)
		}
		batch, err := s.batchGet(ctx, projectIDs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *ProjectStore) batchGet(ctx context.Context, ids []string) ([]*project.Project, error) {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, projectKey(id))
	}
	request := map[string]types.KeysAndAttributes{
		s.tableName: {Keys: keys},
	}

	var out []*project.Project
	for attempt := 0; len(request) > 0; attempt++ {
		if attempt >= maxBatchRetries {
			return nil, apperrors.NewUpstreamTimeout("store did not return every project", nil)
		}
		if attempt > 0 {
			if err := backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return nil, classifyError(err, "failed to load projects")
		}
		for _, av := range resp.Responses[s.tableName] {
			p, err := fromProjectItem(av)
			if err != nil {
				return nil, apperrors.NewInternal("failed to decode project", err)
			}
			out = append(out, p)
		}
		request = resp.UnprocessedKeys
	}
	return out, nil
}

// Delete removes the project and its join code in one transaction, then
// clears the membership index
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return apperrors.NewInternal("failed to build delete condition", err)
	}
	items := []types.TransactWriteItem{
		{
			Delete: &types.Delete{
				TableName:                 aws.String(s.tableName),
				Key:                       projectKey(id),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		},
		s.delete(key(joinCodePK(current.JoinCode), entityJoinCode)),
	}

	members := current.MemberIDs()
	inline := members
	var overflow []string
	if room := maxTransactItems - len(items); len(members) > room {
		inline, overflow = members[:room], members[room:]
	}
	for _, userID := range inline {
		items = append(items, s.delete(key(userPK(userID), membershipSK(id))))
	}

	if err := s.transact(ctx, items); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && failedCondition(tce) == 0 {
			return apperrors.NewNotFound("project not found")
		}
		return classifyError(err, "failed to delete project")
	}

	if len(overflow) > 0 {
		if err := s.batchDeleteMemberships(ctx, id, overflow); err != nil {
			// the project is gone; leftover index items are skipped on read
			s.logger.Warn("Failed to clear membership index",
				zap.String("projectID", id),
				zap.Int("remaining", len(overflow)),
				zap.Error(err))
		}
	}
	return nil
}

func (s *ProjectStore) batchDeleteMemberships(ctx context.Context, projectID string, userIDs []string) error {
	for start := 0; start < len(userIDs); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(userIDs) {
			end = len(userIDs)
		}
		writes := make([]types.WriteRequest, 0, end-start)
		for _, userID := range userIDs[start:end] {
			writes = append(writes, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key(userPK(userID), membershipSK(projectID))},
			})
		}

		request := map[string][]types.WriteRequest{s.tableName: writes}
		for attempt := 0; len(request) > 0; attempt++ {
			if attempt >= maxBatchRetries {
				return apperrors.NewUpstreamTimeout("store did not accept every delete", nil)
			}
			if attempt > 0 {
				if err := backoff(ctx, attempt); err != nil {
					return err
				}
			}
			resp, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: request})
			if err != nil {
				return classifyError(err, "failed to delete memberships")
			}
			request = resp.UnprocessedItems
		}
	}
	return nil
}

func backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * 25 * time.Millisecond
	select {
	case <-ctx.Done():
		return apperrors.NewUpstreamTimeout("store request cancelled", ctx.Err())
	case <-time.After(delay):
		return nil
	}
}

// failedCondition returns the index of the first transaction item whose
// condition check failed, or -1
func failedCondition(tce *types.TransactionCanceledException) int {
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return i
		}
	}
	return -1
}

// classifyError maps SDK failures onto the application error taxonomy
func classifyError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewUpstreamTimeout(msg, err)
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return apperrors.NewConflict(msg)
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			switch aws.ToString(reason.Code) {
			case "ConditionalCheckFailed", "TransactionConflict":
				return apperrors.NewConflict(msg)
			}
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
			return apperrors.NewUpstreamTimeout(msg+": store is throttling requests", err)
		case "TransactionConflictException":
			return apperrors.NewConflict(msg)
		}
	}
	return apperrors.NewInternal(msg, err)
}

func diffMembers(before, after []string) (added, removed []string) {
	prev := make(map[string]struct{}, len(before))
	for _, id := range before {
		prev[id] = struct{}{}
	}
	next := make(map[string]struct{}, len(after))
	for _, id := range after {
		next[id] = struct{}{}
		if _, ok := prev[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
