// Copyright 2024 The exodus Authors
// This file is part of the exodus library.
//
// The exodus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The exodus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the exodus library. If not, see <http://www.gnu.org/licenses/>.

package exodus

// Status is a business-level result code returned in the response envelope.
// Business failures never abort the server; they map to non-zero codes.
type Status int

const (
	StatusOk Status = 0

	StatusAccountNotExist          Status = 101
	StatusTokenNotExist            Status = 102
	StatusInvalidL1L2Token         Status = 103
	StatusNonBalance               Status = 104
	StatusProofTaskAlreadyExists   Status = 105
	StatusExitProofTaskNotExist    Status = 106
	StatusExistTaskWithinThreeHour Status = 107
	StatusRecoverStateUnfinished   Status = 108
	StatusApiClosedTemporarily     Status = 109
	StatusProofsLoadTooMany        Status = 110
	StatusChainNotExist            Status = 111

	StatusInternalErr Status = 500
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusAccountNotExist:
		return "AccountNotExist"
	case StatusTokenNotExist:
		return "TokenNotExist"
	case StatusInvalidL1L2Token:
		return "InvalidL1L2Token"
	case StatusNonBalance:
		return "NonBalance"
	case StatusProofTaskAlreadyExists:
		return "ProofTaskAlreadyExists"
	case StatusExitProofTaskNotExist:
		return "ExitProofTaskNotExist"
	case StatusExistTaskWithinThreeHour:
		return "ExistTaskWithinThreeHour"
	case StatusRecoverStateUnfinished:
		return "RecoverStateUnfinished"
	case StatusApiClosedTemporarily:
		return "ApiClosedTemporarily"
	case StatusProofsLoadTooMany:
		return "ProofsLoadTooMany"
	case StatusChainNotExist:
		return "ChainNotExist"
	case StatusInternalErr:
		return "InternalErr"
	}
	return "Unknown"
}

// Error lets a Status travel through error returns inside the service.
func (s Status) Error() string { return s.String() }

// Response is the uniform envelope of every endpoint.
type Response struct {
	Code   Status      `json:"code"`
	ErrMsg string      `json:"err_msg"`
	Data   interface{} `json:"data"`
}

// Ok wraps a successful payload.
func Ok(data interface{}) *Response {
	return &Response{Code: StatusOk, Data: data}
}

// Err wraps a business failure.
func Err(status Status) *Response {
	return &Response{Code: status, ErrMsg: status.String()}
}

// statusOf converts an internal error into its envelope code.
func statusOf(err error) Status {
	if status, ok := err.(Status); ok {
		return status
	}
	return StatusInternalErr
}
