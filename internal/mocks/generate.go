package mocks

//go:generate mockery --name EventStore --srcpkg github.com/pulse-lab/project-pulse/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name AggregateStore --srcpkg github.com/pulse-lab/project-pulse/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Resolver --srcpkg github.com/pulse-lab/project-pulse/internal/core/groups --output ./groups --outpkg groupsmocks --with-expecter
