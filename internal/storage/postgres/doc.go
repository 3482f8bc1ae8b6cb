// Package postgres 是店铺、优惠券和秒杀订单的关系型存储，基于 pgx/v5 连接池。
//
// 仓储方法在 ctx 携带事务时（见 WithTx）自动复用该事务，
// 因此订单落库可以在一个事务内组合计数、扣减库存和插入三步。
package postgres
