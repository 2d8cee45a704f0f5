//go:build protogen

package profile

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/jkurui/tutorhive/libs/grpcx"
	tutorv1 "github.com/jkurui/tutorhive/protos/gen/tutor/v1"
)

type grpcProvider struct {
	conn   *grpc.ClientConn
	client tutorv1.TutorDirectoryClient
}

// NewRemoteProvider dials the tutor directory service. An empty address
// means the deployment has no remote directory and the caller should fall
// back to the local provider.
func NewRemoteProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{conn: conn, client: tutorv1.NewTutorDirectoryClient(conn)}, nil
}

func (p *grpcProvider) IsListed(ctx context.Context, tutorID string) (bool, error) {
	resp, err := p.client.GetTutor(ctx, &tutorv1.GetTutorRequest{
		TutorId: tutorID,
		AsOf:    timestamppb.New(time.Now().UTC()),
	})
	if err != nil {
		return false, err
	}
	return resp.GetIsListed(), nil
}

func (p *grpcProvider) Close() error {
	return p.conn.Close()
}
