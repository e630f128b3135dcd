// Package awsadp provides AWS adapters for imageai interfaces.
//
// S3AssetStore: keeps image assets in S3, resolves them to presigned URLs and
// implements host.AssetCreator
// SQSNotifier: implements host.Notifier by publishing to an SQS queue
//
// These adapters are compatible with minio and elasticmq for local development,
// allowing seamless transition between local and AWS environments.
package awsadp
