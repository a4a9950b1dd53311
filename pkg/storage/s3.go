package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/quadrabot/quadra/pkg/runlog"
	"github.com/quadrabot/quadra/pkg/schedule"
)

// S3Store implements schedule.Store using AWS S3. Schedules and runs are
// stored as individual JSON objects under schedules/ and runs/ key prefixes.
type S3Store struct {
	client         *s3.Client
	bucket         string
	prefix         string
	encryptSecrets bool
	key            []byte
	mu             sync.RWMutex
}

// NewS3Store creates a new S3 store instance.
func NewS3Store(bucket, region, prefix, endpoint, accessKey, secretKey string, encryptSecrets bool) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	if region == "" {
		region = "us-east-1"
	}

	if prefix == "" {
		prefix = "quadra/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	ctx := context.Background()

	var cfg aws.Config
	var err error

	if accessKey != "" && secretKey != "" {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		)
	} else {
		// Default credentials chain (IAM role, environment variables, etc.)
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if endpoint != "" {
		// Custom endpoint for S3-compatible services
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(cfg)
	}

	// Verify the bucket is reachable before accepting writes
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket '%s': %w", bucket, err)
	}

	log.Printf("S3 storage initialized: bucket=%s, region=%s, prefix=%s", bucket, region, prefix)

	st := &S3Store{
		client:         client,
		bucket:         bucket,
		prefix:         prefix,
		encryptSecrets: encryptSecrets,
	}
	if encryptSecrets {
		st.key = encryptionKey()
	}
	return st, nil
}

func (s *S3Store) scheduleKey(id string) string {
	return s.prefix + "schedules/" + id + ".json"
}

func (s *S3Store) runKey(id string) string {
	return s.prefix + "runs/" + id + ".json"
}

func (s *S3Store) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal object: %w", err)
	}

	_, err = s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save object to S3: %w", err)
	}
	return nil
}

func (s *S3Store) getJSON(key string, v any) error {
	result, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound") {
			return errS3NotFound
		}
		return fmt.Errorf("failed to load object from S3: %w", err)
	}
	defer func() {
		_ = result.Body.Close()
	}()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("failed to read S3 response: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal object: %w", err)
	}
	return nil
}

var errS3NotFound = fmt.Errorf("object not found")

// SaveSchedule stores a schedule in S3.
func (s *S3Store) SaveSchedule(sched *schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sched.ID == "" {
		return schedule.ErrInvalidSchedule{Field: "id", Message: "id is required"}
	}
	if s.encryptSecrets {
		sched = encryptScheduleSecrets(sched, s.key)
	}
	return s.putJSON(s.scheduleKey(sched.ID), sched)
}

// LoadSchedule retrieves a schedule from S3.
func (s *S3Store) LoadSchedule(id string) (*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sched schedule.Schedule
	if err := s.getJSON(s.scheduleKey(id), &sched); err != nil {
		if err == errS3NotFound {
			return nil, schedule.ErrScheduleNotFound{ID: id}
		}
		return nil, err
	}
	if s.encryptSecrets {
		return decryptScheduleSecrets(&sched, s.key), nil
	}
	return &sched, nil
}

// LoadSchedules retrieves all schedules from S3.
func (s *S3Store) LoadSchedules() ([]*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var schedules []*schedule.Schedule
	for _, id := range s.listIDs(s.prefix + "schedules/") {
		var sched schedule.Schedule
		if err := s.getJSON(s.scheduleKey(id), &sched); err != nil {
			log.Printf("Warning: Failed to load schedule %s: %v", id, err)
			continue
		}
		if s.encryptSecrets {
			schedules = append(schedules, decryptScheduleSecrets(&sched, s.key))
		} else {
			schedules = append(schedules, &sched)
		}
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule from S3.
func (s *S3Store) DeleteSchedule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.scheduleKey(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete schedule from S3: %w", err)
	}
	return nil
}

// SaveRun stores a run record in S3.
func (s *S3Store) SaveRun(run *runlog.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	return s.putJSON(s.runKey(run.ID), run)
}

// LoadRun retrieves a run record from S3.
func (s *S3Store) LoadRun(id string) (*runlog.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run runlog.Run
	if err := s.getJSON(s.runKey(id), &run); err != nil {
		if err == errS3NotFound {
			return nil, schedule.ErrRunNotFound{ID: id}
		}
		return nil, err
	}
	return &run, nil
}

// LoadRuns retrieves run records from S3, newest first.
func (s *S3Store) LoadRuns(scheduleID string) ([]*runlog.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*runlog.Run
	for _, id := range s.listIDs(s.prefix + "runs/") {
		var run runlog.Run
		if err := s.getJSON(s.runKey(id), &run); err != nil {
			log.Printf("Warning: Failed to load run %s: %v", id, err)
			continue
		}
		if scheduleID != "" && run.ScheduleID != scheduleID {
			continue
		}
		runs = append(runs, &run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].ExecutedAt.After(runs[j].ExecutedAt)
	})
	return runs, nil
}

// listIDs lists the object IDs stored under a key prefix.
func (s *S3Store) listIDs(prefix string) []string {
	var ids []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.Background())
		if err != nil {
			log.Printf("Warning: Failed to list S3 objects: %v", err)
			return ids
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || !strings.HasSuffix(*obj.Key, ".json") {
				continue
			}
			ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(*obj.Key, prefix), ".json"))
		}
	}
	return ids
}

// Close cleans up resources.
func (s *S3Store) Close() error {
	// S3 client doesn't require explicit cleanup
	return nil
}
