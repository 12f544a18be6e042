// Package secrets loads the process-wide master key from the configured
// source.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/cryptox"
	sc "github.com/dmitrijs2005/schedkeeper/internal/server/config"
)

// objectGetter is the part of *s3.Client the loader needs.
type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var (
	loadAWSConfig = config.LoadDefaultConfig

	newObjectGetter = func(cfg aws.Config, optFns ...func(*s3.Options)) objectGetter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ErrNoMasterKeySource is returned when no source is configured.
var ErrNoMasterKeySource = errors.New("no master key source configured")

// maxObjectSize caps how much of the S3 object is read.
const maxObjectSize = 4096

// LoadMasterKey builds the master key store from, in order of preference,
// an S3 object, a passphrase derivation or the raw configured key.
func LoadMasterKey(ctx context.Context, cfg *sc.Config) (*cryptox.MasterKeyStore, error) {
	const op = "secrets.LoadMasterKey"

	var secret []byte
	switch {
	case cfg.MasterKeyS3Object != "":
		b, err := fetchObject(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		secret = b
	case cfg.MasterKeyPassphrase != "":
		secret = cryptox.DeriveMasterKey([]byte(cfg.MasterKeyPassphrase), []byte(cfg.MasterKeySalt))
	case cfg.MasterKey != "":
		secret = []byte(cfg.MasterKey)
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrNoMasterKeySource)
	}
	defer common.WipeByteArray(secret)

	store, err := cryptox.NewMasterKeyStore(secret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return store, nil
}

func fetchObject(ctx context.Context, c *sc.Config) ([]byte, error) {
	awsCfg, err := loadAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newObjectGetter(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.S3Bucket),
		Key:    aws.String(c.MasterKeyS3Object),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", c.S3Bucket, c.MasterKeyS3Object, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return b, nil
}
