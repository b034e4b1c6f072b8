package sql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Skyrin/go-migrate/e"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	rdsauth "github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/rs/zerolog/log"
)

const (
	ECode020401 = e.Code0204 + "01"
	ECode020402 = e.Code0204 + "02"
	ECode020403 = e.Code0204 + "03"

	// AWSIAMCredentialProvider generates AWS IAM tokens for authenticating with RDS
	AWSIAMCredentialProvider = "aws-iam"
)

// CredentialsProvider allows database credentials to be retrieved dynamically
type CredentialsProvider interface {
	// Name returns the name of the provider
	Name() string
	// Get returns the username and password to use when connecting
	Get(ctx context.Context, dbEndpoint string, dbUser string) (user string, password string, err error)
}

type credentialsProviderBuilderFunc func(ctx context.Context) (CredentialsProvider, error)

// BuilderForCredentialProvider maps provider names to their builders
var BuilderForCredentialProvider = map[string]credentialsProviderBuilderFunc{
	AWSIAMCredentialProvider: newAWSIAMCredentialsProvider,
}

// CredentialsProviderOptions returns the provider names, sorted and quoted
func CredentialsProviderOptions() string {
	ids := make([]string, 0, len(BuilderForCredentialProvider))
	for id := range BuilderForCredentialProvider {
		ids = append(ids, fmt.Sprintf("%q", id))
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}

// NewCredentialsProvider creates the named credentials provider
func NewCredentialsProvider(ctx context.Context, name string) (cp CredentialsProvider, err error) {
	builder, ok := BuilderForCredentialProvider[name]
	if !ok {
		return nil, e.N(ECode020401, fmt.Sprintf("unknown credentials provider: %s (valid: %s)",
			name, CredentialsProviderOptions()))
	}

	cp, err = builder(ctx)
	if err != nil {
		return nil, e.W(err, ECode020402)
	}

	return cp, nil
}

type awsIAMCredentialsProvider struct {
	awsConfig aws.Config
}

func newAWSIAMCredentialsProvider(ctx context.Context) (CredentialsProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &awsIAMCredentialsProvider{awsConfig: cfg}, nil
}

func (p *awsIAMCredentialsProvider) Name() string {
	return AWSIAMCredentialProvider
}

func (p *awsIAMCredentialsProvider) Get(ctx context.Context, dbEndpoint string,
	dbUser string) (string, string, error) {

	token, err := rdsauth.BuildAuthToken(ctx, dbEndpoint, p.awsConfig.Region, dbUser,
		p.awsConfig.Credentials)
	if err != nil {
		return "", "", e.W(err, ECode020403)
	}

	log.Debug().Str("region", p.awsConfig.Region).Str("endpoint", dbEndpoint).
		Str("user", dbUser).Msg("retrieved IAM auth token for DB")

	return dbUser, token, nil
}
