package userstore

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

// ParameterGetter is the part of the SSM client ResolveDSN needs.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NewSSMClient builds an SSM client from the default AWS config chain.
func NewSSMClient(ctx context.Context) (*ssm.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "load AWS config")
	}
	return ssm.NewFromConfig(awsCfg), nil
}

// ResolveDSN returns the decrypted value of the SSM parameter param, or
// fallback when param is empty.
func ResolveDSN(ctx context.Context, ssmc ParameterGetter, param, fallback string) (string, error) {
	if param == "" {
		return fallback, nil
	}
	if ssmc == nil {
		return "", xerrors.Newf("no SSM client to read %s", param)
	}

	out, err := ssmc.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", param)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", param)
	}
	dsn := strings.TrimSpace(*out.Parameter.Value)
	if dsn == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", param)
	}
	return dsn, nil
}
